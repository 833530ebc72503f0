package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docloop/internal/knowledge"
	"github.com/dgallion1/docloop/internal/review"
)

// recordingModel returns a fixed reply and keeps every prompt.
type recordingModel struct {
	reply   string
	err     error
	prompts []string
}

func (m *recordingModel) Invoke(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func makeRefs(n int, content string) []knowledge.Reference {
	refs := make([]knowledge.Reference, n)
	for i := range refs {
		refs[i] = knowledge.Reference{
			Content:  content,
			Filepath: fmt.Sprintf("doc%d.md", i+1),
			ChunkID:  i,
		}
	}
	return refs
}

func TestFormatWriterReferences(t *testing.T) {
	require.Equal(t, "No specific references available.", FormatWriterReferences(nil))

	got := FormatWriterReferences(makeRefs(6, strings.Repeat("é", 600)))
	require.True(t, strings.HasPrefix(got, "Relevant knowledge references:\n1. From doc1.md:\n"))
	require.Contains(t, got, "5. From doc5.md:")
	require.NotContains(t, got, "doc6.md")
	require.Contains(t, got, strings.Repeat("é", 500)+"...\n\n")
	require.NotContains(t, got, strings.Repeat("é", 501))
}

func TestFormatReviewerReferences(t *testing.T) {
	require.Equal(t, "", FormatReviewerReferences(nil))

	got := FormatReviewerReferences(makeRefs(4, strings.Repeat("x", 400)))
	require.Contains(t, got, "1. doc1.md: "+strings.Repeat("x", 300)+"...\n")
	require.Contains(t, got, "3. doc3.md:")
	require.NotContains(t, got, "doc4.md")
}

func TestWriter_GenerateInitialDraft(t *testing.T) {
	m := &recordingModel{reply: "\n\n# Circuit Breakers\n\nBody.\n  "}
	w := NewWriter(m, nil)

	out, err := w.GenerateInitialDraft(context.Background(), "Explain circuit breakers", nil, "Be concise.", "# Seed")
	require.NoError(t, err)
	require.Equal(t, "# Circuit Breakers\n\nBody.", out)

	require.Len(t, m.prompts, 1)
	p := m.prompts[0]
	require.Contains(t, p, "WRITER GUIDELINES:\nBe concise.")
	require.Contains(t, p, "IDEA: Explain circuit breakers")
	require.Contains(t, p, "PARTIAL DOCUMENT (continue from this): # Seed")
	require.Contains(t, p, "No specific references available.")
}

func TestWriter_InitialDraftWithoutSeedOmitsPartialSection(t *testing.T) {
	m := &recordingModel{reply: "x"}
	_, err := NewWriter(m, nil).GenerateInitialDraft(context.Background(), "idea", nil, "g", "")
	require.NoError(t, err)
	require.NotContains(t, m.prompts[0], "PARTIAL DOCUMENT")
}

func TestWriter_AnswerClarifyingQuestion(t *testing.T) {
	m := &recordingModel{reply: "  Operators on call.\n"}
	refs := makeRefs(1, "Runbooks live in ops/.")

	out, err := NewWriter(m, nil).AnswerClarifyingQuestion(context.Background(), "Who is the audience?", "Runbook tool", refs, "g", "# Draft")
	require.NoError(t, err)
	require.Equal(t, "Operators on call.", out)

	p := m.prompts[0]
	require.Contains(t, p, "QUESTION: Who is the audience?")
	require.Contains(t, p, "ORIGINAL IDEA: Runbook tool")
	require.Contains(t, p, "CURRENT DRAFT: # Draft")
	require.Contains(t, p, "From doc1.md:")
}

func TestWriter_ApplyPatchPrompt(t *testing.T) {
	m := &recordingModel{reply: "patched"}
	w := NewWriter(m, nil)
	ops := []review.PatchOperation{
		review.Replace{OldText: "slow", NewText: "fast"},
		review.Append{Section: "## States", Content: "Half-open."},
	}

	out, err := w.ApplyPatch(context.Background(), "# Title\n\n## States\n\nslow", ops, "idea", makeRefs(1, "ref"), "g")
	require.NoError(t, err)
	require.Equal(t, "patched", out)

	p := m.prompts[0]
	require.Contains(t, p, "CURRENT DRAFT:\n# Title")
	require.Contains(t, p, `"operation": "replace"`)
	require.Contains(t, p, `"old_text": "slow"`)
	require.Contains(t, p, `"section": "## States"`)
	require.Contains(t, p, "DOCUMENT OUTLINE (section headings):\n# Title\n  ## States\n")
	require.Contains(t, p, "1. From doc1.md:")
}

func TestWriter_RegeneratePromptIncludesFeedback(t *testing.T) {
	m := &recordingModel{reply: "rewritten"}
	answers := review.NewAnswers()
	answers.Set("Who is the audience?", "Backend engineers")
	answers.Set("Which language?", "Go")

	_, err := NewWriter(m, nil).RegenerateFullDraft(context.Background(), "idea", nil, "g", "", "old draft", Feedback{
		Issues:      []string{"Too short"},
		Suggestions: []string{"Add diagrams"},
		Answers:     answers,
	})
	require.NoError(t, err)

	p := m.prompts[0]
	require.Contains(t, p, "PREVIOUS DRAFT: old draft")
	require.Contains(t, p, "ISSUES FOUND:\n- Too short")
	require.Contains(t, p, "SUGGESTIONS:\n- Add diagrams")
	require.Contains(t, p, "CLARIFYING ANSWERS:\n- Who is the audience?: Backend engineers\n- Which language?: Go")
	require.NotContains(t, p, "PARTIAL DOCUMENT")
}

func TestWriter_RegenerateWithoutFeedback(t *testing.T) {
	m := &recordingModel{reply: "rewritten"}
	_, err := NewWriter(m, nil).RegenerateFullDraft(context.Background(), "idea", nil, "g", "seed", "", Feedback{})
	require.NoError(t, err)
	require.NotContains(t, m.prompts[0], "REVIEW FEEDBACK")
	require.Contains(t, m.prompts[0], "PARTIAL DOCUMENT: seed")
}

func TestWriter_PropagatesModelError(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := NewWriter(&recordingModel{err: boom}, nil).AnswerClarifyingQuestion(context.Background(), "q?", "idea", nil, "g", "")
	require.ErrorIs(t, err, boom)
}

func TestReviewer_ParsesAndFiltersQuestions(t *testing.T) {
	m := &recordingModel{reply: "```json\n" + `{
  "accept": false,
  "score": 72,
  "major_rewrite": false,
  "issues": ["Missing examples"],
  "suggestions": [],
  "changes": [{"operation": "add_section", "params": {"heading": "## Examples", "content": "..."}}],
  "clarifying_questions": ["What are the key benefits", "How does this work?"]
}` + "\n```"}
	previous := review.NewAnswers()
	previous.Set("What are the key benefits?", "Resilience")

	rv, err := NewReviewer(m, nil).ReviewDraft(context.Background(), "draft", "idea", makeRefs(2, "ctx"), "strict", previous)
	require.NoError(t, err)
	require.Equal(t, 72, rv.Score)
	require.Equal(t, []string{"How does this work?"}, rv.ClarifyingQuestions)
	require.Equal(t, []review.PatchOperation{review.AddSection{Heading: "## Examples", Content: "..."}}, rv.Changes)

	p := m.prompts[0]
	require.Contains(t, p, "REVIEWER GUIDELINES:\nstrict")
	require.Contains(t, p, "DOCUMENT DRAFT TO REVIEW:\ndraft")
	require.Contains(t, p, "PREVIOUSLY ANSWERED CLARIFYING QUESTIONS:\nQ: What are the key benefits?\nA: Resilience\n")
	require.Contains(t, p, "1. doc1.md: ctx...")
}

func TestReviewer_NoHistoryKeepsQuestions(t *testing.T) {
	m := &recordingModel{reply: `{"score": 80, "clarifying_questions": ["A?", "a"]}`}
	rv, err := NewReviewer(m, nil).ReviewDraft(context.Background(), "d", "i", nil, "g", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"A?", "a"}, rv.ClarifyingQuestions)
	require.NotContains(t, m.prompts[0], "PREVIOUSLY ANSWERED")
}

func TestReviewer_UnparseableResponseFallsBack(t *testing.T) {
	m := &recordingModel{reply: "I think it's fine."}
	rv, err := NewReviewer(m, nil).ReviewDraft(context.Background(), "d", "i", nil, "g", nil)
	require.NoError(t, err)
	require.Equal(t, review.Fallback(), rv)
}

func TestReviewer_ModelErrorPropagates(t *testing.T) {
	boom := errors.New("timeout")
	_, err := NewReviewer(&recordingModel{err: boom}, nil).ReviewDraft(context.Background(), "d", "i", nil, "g", nil)
	require.ErrorIs(t, err, boom)
}
