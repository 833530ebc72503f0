package loop

import (
	"github.com/dgallion1/docloop/internal/knowledge"
	"github.com/dgallion1/docloop/internal/review"
)

// IterationRecord is the audit entry for one review round.
type IterationRecord struct {
	Iteration           int      `json:"iteration"`
	Score               int      `json:"score"`
	Issues              []string `json:"issues"`
	Suggestions         []string `json:"suggestions"`
	ClarifyingQuestions []string `json:"clarifying_questions"`
	// ClarifyingAnswers is nil when no question was asked this round.
	ClarifyingAnswers *review.Answers `json:"clarifying_answers"`
}

// ReferenceUsed identifies a retrieved chunk.
type ReferenceUsed struct {
	File  string `json:"file"`
	Chunk int    `json:"chunk"`
}

// RunMetadata summarizes a finished run.
type RunMetadata struct {
	LLMProvider      string            `json:"llm_provider"`
	Score            int               `json:"score"`
	IterationCount   int               `json:"iteration_count"`
	Timestamp        string            `json:"timestamp"`
	ReferencesUsed   []ReferenceUsed   `json:"references_used"`
	IterationDetails []IterationRecord `json:"iteration_details"`
	Accepted         bool              `json:"accepted"`
}

func referencesUsed(refs []knowledge.Reference) []ReferenceUsed {
	out := make([]ReferenceUsed, len(refs))
	for i, r := range refs {
		out[i] = ReferenceUsed{File: r.Filepath, Chunk: r.ChunkID}
	}
	return out
}
