package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/docloop/internal/knowledge"
	"github.com/dgallion1/docloop/internal/review"
)

const (
	writerRefLimit   = 5
	writerRefChars   = 500
	reviewerRefLimit = 3
	reviewerRefChars = 300
)

const noReferences = "No specific references available."

const reviewInstructions = `Your task is to provide a comprehensive review in JSON format only.

IMPORTANT NOTES FOR REVIEW:
- If clarifying questions have been previously answered (shown above), assume those answers have been incorporated into the document. Focus on NEW issues or areas not covered by previous answers.
- When calculating the score, consider that previous clarifying questions indicate missing information that has now been addressed through assumptions and improvements.
- Look for actual improvements and completeness rather than assuming the document is missing critical information.

IMPORTANT: When generating clarifying_questions, DO NOT ask any questions that have already been answered above.
If you need clarification but a similar question has already been answered, phrase new questions differently or avoid asking if the information is already available.

Calculate an overall score (0-100) based on the provided guidelines and general quality criteria.

RESPONSE FORMAT - Return only valid JSON:
{
  "accept": true/false,
  "score": 0-100,
  "major_rewrite": true/false,
  "issues": ["Array of specific problems found with section/line references"],
  "suggestions": ["Array of actionable improvement recommendations"],
  "changes": [
     {"operation": "replace/insert_before/insert_after/append/add_section", "params": {...}}
   ],
  "clarifying_questions": ["Questions for writer to address ambiguities"]
}

RULES:
- accept=true only if score >= 90 and no major issues
- major_rewrite=true if score < 70 or requires complete restructuring
- For patch operations, use these formats:
  {"operation": "replace", "params": {"old_text": "exact text to replace", "new_text": "replacement text"}}
  {"operation": "insert_before", "params": {"anchor": "text to find", "content": "text to insert"}}
  {"operation": "insert_after", "params": {"anchor": "text to find", "content": "text to insert"}}
  {"operation": "append", "params": {"section": "# Section Name", "content": "additional content"}}
  {"operation": "add_section", "params": {"heading": "## New Section", "content": "section content"}}
- Prioritize patch operations for minor fixes when score >= 70
- Be specific and actionable in feedback`

const patchInstructions = `Supported patch operations:
- replace: Replace specific old text with new text
- insert_before: Insert content before a specific anchor text
- insert_after: Insert content after a specific anchor text
- append: Append content to the end of a specific section
- add_section: Add a new section with heading and content

Apply all the patch operations above to edit the current draft.
Output only the complete modified document.
Do not include any explanations or comments about the changes.`

// clip returns the first n runes of s.
func clip(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// FormatWriterReferences lists up to five references with 500-character
// excerpts.
func FormatWriterReferences(refs []knowledge.Reference) string {
	if len(refs) == 0 {
		return noReferences
	}
	var sb strings.Builder
	sb.WriteString("Relevant knowledge references:\n")
	for i, ref := range refs[:min(len(refs), writerRefLimit)] {
		fmt.Fprintf(&sb, "%d. From %s:\n%s...\n\n", i+1, ref.Filepath, clip(ref.Content, writerRefChars))
	}
	return sb.String()
}

// FormatReviewerReferences lists up to three references with
// 300-character excerpts, or "" when there are none.
func FormatReviewerReferences(refs []knowledge.Reference) string {
	if len(refs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nRelevant knowledge references used in drafting:\n")
	for i, ref := range refs[:min(len(refs), reviewerRefLimit)] {
		fmt.Fprintf(&sb, "%d. %s: %s...\n", i+1, ref.Filepath, clip(ref.Content, reviewerRefChars))
	}
	return sb.String()
}

func formatPreviousAnswers(answers *review.Answers) string {
	if answers.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nPREVIOUSLY ANSWERED CLARIFYING QUESTIONS:\n")
	for q, a := range answers.All() {
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n\n", q, a)
	}
	return sb.String()
}

func writeGuidelines(sb *strings.Builder, role, guidelines string) {
	fmt.Fprintf(sb, "%s GUIDELINES:\n%s\n\n", role, guidelines)
}

// BuildInitialDraftPrompt asks for a complete markdown document.
func BuildInitialDraftPrompt(idea string, refs []knowledge.Reference, guidelines, partialDoc string) string {
	var sb strings.Builder
	sb.WriteString("You are a writer creating comprehensive content based on an idea.\n\n")
	writeGuidelines(&sb, "WRITER", guidelines)
	sb.WriteString("TASK:\nCreate a complete document for the following idea.\n\n")
	fmt.Fprintf(&sb, "IDEA: %s\n\n", idea)
	if partialDoc != "" {
		fmt.Fprintf(&sb, "PARTIAL DOCUMENT (continue from this): %s\n\n", partialDoc)
	}
	fmt.Fprintf(&sb, "RELEVANT KNOWLEDGE BASE REFERENCES:\n%s\n\n", FormatWriterReferences(refs))
	sb.WriteString("Generate the complete document in markdown format. Do not wrap it in ```markdown fences.\n")
	return sb.String()
}

// BuildAnswerPrompt asks for a short answer to one clarifying question.
func BuildAnswerPrompt(question, idea string, refs []knowledge.Reference, guidelines, currentDraft string) string {
	var sb strings.Builder
	sb.WriteString("You are a writer answering a clarifying question to help improve a documentation draft.\n\n")
	writeGuidelines(&sb, "WRITER", guidelines)
	fmt.Fprintf(&sb, "ORIGINAL IDEA: %s\n\n", idea)
	if currentDraft != "" {
		fmt.Fprintf(&sb, "CURRENT DRAFT: %s\n\n", currentDraft)
	}
	fmt.Fprintf(&sb, "RELEVANT KNOWLEDGE BASE REFERENCES:\n%s\n\n", FormatWriterReferences(refs))
	fmt.Fprintf(&sb, "QUESTION: %s\n\n", question)
	sb.WriteString("Provide a concise, helpful answer to this clarifying question. Focus on practical details that will help create better documentation. Keep the answer focused and actionable.\n")
	return sb.String()
}

// BuildPatchPrompt asks the model to apply every operation and return the
// whole document. outline may be empty.
func BuildPatchPrompt(currentDraft string, ops []review.PatchOperation, idea string, refs []knowledge.Reference, guidelines, outline string) (string, error) {
	patches, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode patch operations: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You are a writer applying targeted edits to a document.\n\n")
	writeGuidelines(&sb, "WRITER", guidelines)
	fmt.Fprintf(&sb, "ORIGINAL IDEA: %s\n\n", idea)
	fmt.Fprintf(&sb, "CURRENT DRAFT:\n%s\n\n", currentDraft)
	if outline != "" {
		fmt.Fprintf(&sb, "DOCUMENT OUTLINE (section headings):\n%s\n", outline)
	}
	fmt.Fprintf(&sb, "RELEVANT REFERENCES:\n%s\n\n", FormatWriterReferences(refs))
	fmt.Fprintf(&sb, "PATCH OPERATIONS TO APPLY:\n%s\n\n", patches)
	sb.WriteString(patchInstructions)
	sb.WriteString("\n")
	return sb.String(), nil
}

// Feedback is the review context folded into a full rewrite.
type Feedback struct {
	Issues      []string
	Suggestions []string
	Answers     *review.Answers
}

func (f Feedback) empty() bool {
	return len(f.Issues) == 0 && len(f.Suggestions) == 0 && f.Answers.Len() == 0
}

// BuildRegeneratePrompt asks for a full rewrite informed by feedback.
func BuildRegeneratePrompt(idea string, refs []knowledge.Reference, guidelines, partialDoc, currentDraft string, fb Feedback) string {
	var sb strings.Builder
	sb.WriteString("You are a writer performing a major rewrite of a document.\n\n")
	writeGuidelines(&sb, "WRITER", guidelines)
	fmt.Fprintf(&sb, "ORIGINAL IDEA: %s\n\n", idea)
	if partialDoc != "" {
		fmt.Fprintf(&sb, "PARTIAL DOCUMENT: %s\n\n", partialDoc)
	}
	if currentDraft != "" {
		fmt.Fprintf(&sb, "PREVIOUS DRAFT: %s\n\n", currentDraft)
	}
	if !fb.empty() {
		var parts []string
		if len(fb.Issues) > 0 {
			parts = append(parts, "ISSUES FOUND:\n"+bulletList(fb.Issues))
		}
		if len(fb.Suggestions) > 0 {
			parts = append(parts, "SUGGESTIONS:\n"+bulletList(fb.Suggestions))
		}
		if fb.Answers.Len() > 0 {
			var lines []string
			for q, a := range fb.Answers.All() {
				lines = append(lines, fmt.Sprintf("- %s: %s", q, a))
			}
			parts = append(parts, "CLARIFYING ANSWERS:\n"+strings.Join(lines, "\n"))
		}
		fmt.Fprintf(&sb, "REVIEW FEEDBACK:\n%s\n\n", strings.Join(parts, "\n\n"))
	}
	fmt.Fprintf(&sb, "RELEVANT KNOWLEDGE BASE REFERENCES:\n%s\n\n", FormatWriterReferences(refs))
	sb.WriteString("Generate the complete revised document:\n")
	return sb.String()
}

// BuildReviewPrompt asks for a JSON verdict on draft.
func BuildReviewPrompt(draft, idea string, refs []knowledge.Reference, guidelines string, previous *review.Answers) string {
	var sb strings.Builder
	sb.WriteString("You are a reviewer evaluating a draft document.\n\n")
	writeGuidelines(&sb, "REVIEWER", guidelines)
	fmt.Fprintf(&sb, "ORIGINAL IDEA: %s\n\n", idea)
	fmt.Fprintf(&sb, "DOCUMENT DRAFT TO REVIEW:\n%s\n\n", draft)
	sb.WriteString(FormatReviewerReferences(refs))
	sb.WriteString(formatPreviousAnswers(previous))
	sb.WriteString("\n")
	sb.WriteString(reviewInstructions)
	sb.WriteString("\n")
	return sb.String()
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}
