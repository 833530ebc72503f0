package agents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docloop/internal/knowledge"
	"github.com/dgallion1/docloop/internal/llm"
	"github.com/dgallion1/docloop/internal/review"
)

// Reviewer scores drafts against guidelines.
type Reviewer struct {
	model llm.Model
	log   *slog.Logger
}

func NewReviewer(model llm.Model, log *slog.Logger) *Reviewer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Reviewer{model: model, log: log.With("agent", "reviewer")}
}

// ReviewDraft returns a normalized verdict. An unparseable response yields
// review.Fallback(); only model failures are returned as errors. Questions
// similar to ones in previous are removed.
func (r *Reviewer) ReviewDraft(ctx context.Context, draft, idea string, refs []knowledge.Reference, guidelines string, previous *review.Answers) (review.Review, error) {
	raw, err := r.model.Invoke(ctx, BuildReviewPrompt(draft, idea, refs, guidelines, previous))
	if err != nil {
		return review.Review{}, fmt.Errorf("reviewer: %w", err)
	}

	res := review.Parse(raw)
	if !res.OK() {
		r.log.Warn("failed to parse reviewer response", "error", res.Err, "response", truncate(raw, 500))
		return res.Review, nil
	}
	for _, d := range res.Dropped {
		r.log.Warn("dropped patch operation", "error", d)
	}

	rv := res.Review
	if previous.Len() > 0 && len(rv.ClarifyingQuestions) > 0 {
		kept, dropped := review.FilterAnswered(rv.ClarifyingQuestions, previous)
		for _, q := range dropped {
			r.log.Debug("filtered similar question", "question", truncate(q, 60))
		}
		r.log.Debug("filtered clarifying questions", "kept", len(kept), "filtered", len(dropped))
		rv.ClarifyingQuestions = kept
	}
	return rv, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return clip(s, n) + "..."
}
