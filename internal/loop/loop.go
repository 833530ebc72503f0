// Package loop drives a draft through repeated review and revision until it
// is accepted or the iteration budget runs out.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgallion1/docloop/internal/agents"
	"github.com/dgallion1/docloop/internal/draft"
	"github.com/dgallion1/docloop/internal/knowledge"
	"github.com/dgallion1/docloop/internal/review"
)

// HighIterationCap is the iteration budget used once an explicit accept
// threshold makes the score, not the budget, the stopping condition. Remote
// callers may not ask for more.
const HighIterationCap = 1000

var (
	ErrInvalidMaxIters  = errors.New("max iterations must be at least 1")
	ErrInvalidThreshold = errors.New("accept threshold must be between 0 and 100")
)

// Writer is the drafting role.
type Writer interface {
	Answerer
	GenerateInitialDraft(ctx context.Context, idea string, refs []knowledge.Reference, guidelines, partialDoc string) (string, error)
	ApplyPatch(ctx context.Context, currentDraft string, ops []review.PatchOperation, idea string, refs []knowledge.Reference, guidelines string) (string, error)
	RegenerateFullDraft(ctx context.Context, idea string, refs []knowledge.Reference, guidelines, partialDoc, currentDraft string, fb agents.Feedback) (string, error)
}

// Reviewer is the scoring role.
type Reviewer interface {
	ReviewDraft(ctx context.Context, draft, idea string, refs []knowledge.Reference, guidelines string, previous *review.Answers) (review.Review, error)
}

// Indexer builds the knowledge index.
type Indexer interface {
	Index(ctx context.Context) (knowledge.IndexStats, error)
}

// Retriever fetches references from the knowledge index.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]knowledge.Reference, error)
	IsIndexed(ctx context.Context) bool
}

// Config wires a FeedbackLoop. Indexer and Retriever are nil when no
// knowledge folder is configured.
type Config struct {
	Writer             Writer
	Reviewer           Reviewer
	Indexer            Indexer
	Retriever          Retriever
	Resolver           QuestionResolver
	WriterGuidelines   string
	ReviewerGuidelines string
	Policy             AcceptPolicy
	// Provider is reported as llm_provider in the run metadata.
	Provider string
	// Out receives operator-facing progress. Nil discards it.
	Out io.Writer
	Log *slog.Logger
	// OnIteration, if set, is called after each iteration record is made.
	OnIteration func(IterationRecord)
}

// Options are the per-run inputs.
type Options struct {
	Idea            string
	MaxIters        int
	AcceptThreshold int
	// OutputFile, if set, seeds the run from its existing content and
	// receives a checkpoint after every draft change.
	OutputFile string
}

// FeedbackLoop runs one writer/reviewer session at a time.
type FeedbackLoop struct {
	cfg Config
	out io.Writer
	log *slog.Logger
	now func() time.Time
}

func New(cfg Config) *FeedbackLoop {
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if cfg.Policy == "" {
		cfg.Policy = AcceptByScore
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewAutomatedResolver(cfg.Writer, cfg.WriterGuidelines, out)
	}
	return &FeedbackLoop{cfg: cfg, out: out, log: log, now: time.Now}
}

// runState is the mutable state of a single run.
type runState struct {
	opts       Options
	seed       string
	refs       []knowledge.Reference
	draft      string
	cumulative *review.Answers
	iterations []IterationRecord
}

// Run executes the loop and returns the final draft with its metadata. Any
// capability failure aborts the run; the last checkpoint stays on disk.
func (l *FeedbackLoop) Run(ctx context.Context, opts Options) (string, RunMetadata, error) {
	if opts.MaxIters < 1 {
		return "", RunMetadata{}, fmt.Errorf("%w: got %d", ErrInvalidMaxIters, opts.MaxIters)
	}
	if opts.AcceptThreshold < review.MinScore || opts.AcceptThreshold > review.MaxScore {
		return "", RunMetadata{}, fmt.Errorf("%w: got %d", ErrInvalidThreshold, opts.AcceptThreshold)
	}

	st := &runState{opts: opts, cumulative: review.NewAnswers()}
	log := l.log.With("max_iters", opts.MaxIters, "accept_threshold", opts.AcceptThreshold)
	fmt.Fprintf(l.out, "Starting documentation generation for: %s\n", opts.Idea)
	log.Info("starting run", "provider", l.cfg.Provider)

	if opts.OutputFile != "" {
		seed, err := draft.LoadSeed(opts.OutputFile)
		if err != nil {
			return "", RunMetadata{}, err
		}
		if seed != "" {
			fmt.Fprintf(l.out, "Resuming from existing output file: %s\n", opts.OutputFile)
			log.Info("resuming from checkpoint", "output_file", opts.OutputFile, "seed_chars", len(seed))
		}
		st.seed = seed
	}

	if err := l.ensureIndexed(ctx); err != nil {
		return "", RunMetadata{}, err
	}
	refs, err := l.retrieve(ctx, opts.Idea)
	if err != nil {
		return "", RunMetadata{}, err
	}
	st.refs = refs

	st.draft, err = l.cfg.Writer.GenerateInitialDraft(ctx, opts.Idea, refs, l.cfg.WriterGuidelines, st.seed)
	if err != nil {
		return "", RunMetadata{}, err
	}
	if err := l.checkpoint(st); err != nil {
		return "", RunMetadata{}, err
	}

	var (
		last     review.Review
		accepted bool
	)
	for i := range opts.MaxIters {
		iteration := i + 1
		fmt.Fprintf(l.out, "\n--- Iteration %d ---\n", iteration)

		rv, err := l.cfg.Reviewer.ReviewDraft(ctx, st.draft, opts.Idea, st.refs, l.cfg.ReviewerGuidelines, st.cumulative)
		if err != nil {
			return "", RunMetadata{}, err
		}
		last = rv
		fmt.Fprintf(l.out, "Review score: %d\nAccept: %t\nMajor rewrite needed: %t\n", rv.Score, rv.Accept, rv.MajorRewrite)
		log.Info("reviewed draft", "iteration", iteration, "score", rv.Score, "issues", len(rv.Issues),
			"changes", len(rv.Changes), "questions", len(rv.ClarifyingQuestions), "major_rewrite", rv.MajorRewrite)

		answers, err := l.resolveQuestions(ctx, st, rv.ClarifyingQuestions)
		if err != nil {
			return "", RunMetadata{}, err
		}

		rec := IterationRecord{
			Iteration:           iteration,
			Score:               rv.Score,
			Issues:              rv.Issues,
			Suggestions:         rv.Suggestions,
			ClarifyingQuestions: rv.ClarifyingQuestions,
		}
		if answers.Len() > 0 {
			rec.ClarifyingAnswers = answers
		}
		st.iterations = append(st.iterations, rec)
		if l.cfg.OnIteration != nil {
			l.cfg.OnIteration(rec)
		}

		if l.cfg.Policy.Accepts(rv, opts.AcceptThreshold) {
			fmt.Fprintln(l.out, "Draft accepted!")
			accepted = true
			break
		}
		if iteration == opts.MaxIters {
			fmt.Fprintln(l.out, "Max iterations reached. Using final draft.")
			break
		}

		st.draft, err = l.revise(ctx, st, rv)
		if err != nil {
			return "", RunMetadata{}, err
		}
		if err := l.checkpoint(st); err != nil {
			return "", RunMetadata{}, err
		}
	}

	meta := RunMetadata{
		LLMProvider:      l.cfg.Provider,
		Score:            last.Score,
		IterationCount:   len(st.iterations),
		Timestamp:        l.now().UTC().Format(time.RFC3339Nano),
		ReferencesUsed:   referencesUsed(st.refs),
		IterationDetails: st.iterations,
		Accepted:         accepted,
	}
	fmt.Fprintf(l.out, "\nProcess completed in %d iterations\nFinal score: %d\n", meta.IterationCount, meta.Score)
	log.Info("run finished", "iterations", meta.IterationCount, "score", meta.Score, "accepted", accepted, "draft_chars", len(st.draft))
	return st.draft, meta, nil
}

// ensureIndexed indexes the knowledge folder on first use only.
func (l *FeedbackLoop) ensureIndexed(ctx context.Context) error {
	if l.cfg.Retriever == nil || l.cfg.Retriever.IsIndexed(ctx) {
		return nil
	}
	if l.cfg.Indexer == nil {
		return nil
	}
	fmt.Fprintln(l.out, "Knowledge base not indexed. Indexing now...")
	stats, err := l.cfg.Indexer.Index(ctx)
	if err != nil {
		return fmt.Errorf("indexing knowledge base: %w", err)
	}
	fmt.Fprintf(l.out, "Found %d files, created %d chunks\n", stats.Files, stats.Chunks)
	return nil
}

func (l *FeedbackLoop) retrieve(ctx context.Context, idea string) ([]knowledge.Reference, error) {
	if l.cfg.Retriever == nil {
		return nil, nil
	}
	refs, err := l.cfg.Retriever.Retrieve(ctx, idea, knowledge.DefaultTopK)
	if err != nil {
		return nil, fmt.Errorf("retrieving references: %w", err)
	}
	fmt.Fprintf(l.out, "Retrieved %d relevant references\n", len(refs))
	for i, ref := range refs {
		fmt.Fprintf(l.out, "  Reference %d: %s (chunk %d)\n", i+1, ref.Filepath, ref.ChunkID)
	}
	return refs, nil
}

// resolveQuestions answers each question in order and records the answers in
// both the returned per-iteration map and the run's cumulative map.
func (l *FeedbackLoop) resolveQuestions(ctx context.Context, st *runState, questions []string) (*review.Answers, error) {
	answers := review.NewAnswers()
	if len(questions) == 0 {
		return answers, nil
	}

	fmt.Fprintln(l.out, "\nClarifying questions have been asked to improve the document:")
	for i, q := range questions {
		fmt.Fprintf(l.out, "%d. %s\n", i+1, q)
	}
	fmt.Fprintln(l.out)

	qc := QuestionContext{Idea: st.opts.Idea, References: st.refs, Draft: st.draft}
	for _, q := range questions {
		answer, err := l.cfg.Resolver.Resolve(ctx, q, qc)
		if err != nil {
			return nil, fmt.Errorf("resolving clarifying question: %w", err)
		}
		answers.Set(q, answer)
	}
	st.cumulative.Merge(answers)
	l.log.Debug("resolved clarifying questions", "questions", answers.Questions(), "cumulative", st.cumulative.Len())
	return answers, nil
}

// revise picks the revision path: a full rewrite when the reviewer asks for
// one or supplies no patch, otherwise a patch.
func (l *FeedbackLoop) revise(ctx context.Context, st *runState, rv review.Review) (string, error) {
	if !rv.MajorRewrite && len(rv.Changes) > 0 {
		fmt.Fprintln(l.out, "Applying patch edits...")
		l.log.Debug("applying patch", "operations", len(rv.Changes))
		return l.cfg.Writer.ApplyPatch(ctx, st.draft, rv.Changes, st.opts.Idea, st.refs, l.cfg.WriterGuidelines)
	}

	if rv.MajorRewrite {
		fmt.Fprintln(l.out, "Performing major rewrite...")
	} else {
		fmt.Fprintln(l.out, "No patch operations supplied, regenerating draft...")
	}
	return l.cfg.Writer.RegenerateFullDraft(ctx, st.opts.Idea, st.refs, l.cfg.WriterGuidelines, st.seed, st.draft, agents.Feedback{
		Issues:      rv.Issues,
		Suggestions: rv.Suggestions,
		Answers:     st.cumulative,
	})
}

func (l *FeedbackLoop) checkpoint(st *runState) error {
	if st.opts.OutputFile == "" {
		return nil
	}
	if err := draft.Checkpoint(st.opts.OutputFile, st.draft); err != nil {
		return fmt.Errorf("checkpoint draft: %w", err)
	}
	return nil
}
