// Package review defines the reviewer's verdict and turns untrusted model
// output into a normalized Review.
package review

// Review is the structured verdict for one draft snapshot. All list fields
// are non-nil after Parse.
type Review struct {
	Accept              bool             `json:"accept"`
	Score               int              `json:"score"`
	MajorRewrite        bool             `json:"major_rewrite"`
	Issues              []string         `json:"issues"`
	Suggestions         []string         `json:"suggestions"`
	Changes             []PatchOperation `json:"changes"`
	ClarifyingQuestions []string         `json:"clarifying_questions"`
}

const (
	// MissingScore fills a review whose JSON omits the score.
	MissingScore = 50
	// FallbackScore is used when the response cannot be parsed at all.
	FallbackScore = 60

	MinScore = 0
	MaxScore = 100
)

// Fallback is the verdict used when the reviewer response is unusable. It
// forces a full rewrite.
func Fallback() Review {
	return Review{
		Accept:              false,
		Score:               FallbackScore,
		MajorRewrite:        true,
		Issues:              []string{"Failed to parse reviewer feedback"},
		Suggestions:         []string{"Please regenerate the review"},
		Changes:             []PatchOperation{},
		ClarifyingQuestions: []string{},
	}
}

// ClampScore bounds a score to [MinScore, MaxScore].
func ClampScore(score int) int {
	return max(MinScore, min(MaxScore, score))
}
