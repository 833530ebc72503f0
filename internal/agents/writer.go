// Package agents holds the writer and reviewer roles that drive a draft
// through the feedback loop.
package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/docloop/internal/draft"
	"github.com/dgallion1/docloop/internal/knowledge"
	"github.com/dgallion1/docloop/internal/llm"
	"github.com/dgallion1/docloop/internal/review"
)

// Writer produces and revises drafts. Every method makes exactly one model
// call and returns its trimmed text.
type Writer struct {
	model llm.Model
	log   *slog.Logger
}

func NewWriter(model llm.Model, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Writer{model: model, log: log.With("agent", "writer")}
}

func (w *Writer) invoke(ctx context.Context, op, prompt string) (string, error) {
	w.log.Debug("invoking model", "op", op, "prompt_chars", len(prompt))
	out, err := w.model.Invoke(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("writer %s: %w", op, err)
	}
	return strings.TrimSpace(out), nil
}

// GenerateInitialDraft writes a first draft, continuing partialDoc when set.
func (w *Writer) GenerateInitialDraft(ctx context.Context, idea string, refs []knowledge.Reference, guidelines, partialDoc string) (string, error) {
	return w.invoke(ctx, "initial_draft", BuildInitialDraftPrompt(idea, refs, guidelines, partialDoc))
}

// AnswerClarifyingQuestion answers a reviewer question on the operator's behalf.
func (w *Writer) AnswerClarifyingQuestion(ctx context.Context, question, idea string, refs []knowledge.Reference, guidelines, currentDraft string) (string, error) {
	return w.invoke(ctx, "answer_question", BuildAnswerPrompt(question, idea, refs, guidelines, currentDraft))
}

// ApplyPatch asks the model to apply the whole batch of operations. There is
// no per-operation result.
func (w *Writer) ApplyPatch(ctx context.Context, currentDraft string, ops []review.PatchOperation, idea string, refs []knowledge.Reference, guidelines string) (string, error) {
	outline := draft.FormatOutline(draft.Outline(currentDraft))
	prompt, err := BuildPatchPrompt(currentDraft, ops, idea, refs, guidelines, outline)
	if err != nil {
		return "", err
	}
	return w.invoke(ctx, "apply_patch", prompt)
}

// RegenerateFullDraft rewrites the document from scratch with feedback.
func (w *Writer) RegenerateFullDraft(ctx context.Context, idea string, refs []knowledge.Reference, guidelines, partialDoc, currentDraft string, fb Feedback) (string, error) {
	return w.invoke(ctx, "regenerate", BuildRegeneratePrompt(idea, refs, guidelines, partialDoc, currentDraft, fb))
}
