package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/dgallion1/docloop/internal/embedding"
	"github.com/dgallion1/docloop/internal/knowledge"
	"github.com/dgallion1/docloop/internal/loop"
)

// Deps are the capabilities shared by every run.
type Deps struct {
	Writer   loop.Writer
	Reviewer loop.Reviewer
	// Embedder is required for runs that name a references folder.
	Embedder  embedding.Embedder
	Knowledge knowledge.Options
	Provider  string
}

// Worker executes run jobs.
type Worker struct {
	deps  Deps
	locks *folderLocks
	log   *slog.Logger
}

func NewWorker(deps Deps, locks *folderLocks, log *slog.Logger) *Worker {
	if locks == nil {
		locks = newFolderLocks()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Worker{deps: deps, locks: locks, log: log}
}

// Process runs the feedback loop for a job. Clarifying questions are always
// answered by the writer.
func (w *Worker) Process(ctx context.Context, job *Job) {
	req := job.Request
	log := w.log.With("run_id", job.ID)
	job.SetStatus(StatusRunning, "starting")

	policy, err := loop.ParseAcceptPolicy(req.AcceptPolicy)
	if err != nil {
		w.fail(log, job, "starting", err)
		return
	}

	cfg := loop.Config{
		Writer:             w.deps.Writer,
		Reviewer:           w.deps.Reviewer,
		Resolver:           loop.NewAutomatedResolver(w.deps.Writer, req.WriterGuidelines, nil),
		WriterGuidelines:   req.WriterGuidelines,
		ReviewerGuidelines: req.ReviewerGuidelines,
		Policy:             policy,
		Provider:           w.deps.Provider,
		Log:                log,
		OnIteration: func(rec loop.IterationRecord) {
			job.RecordIteration(rec)
			job.SetStatus(StatusRunning, fmt.Sprintf("iteration %d", rec.Iteration))
			log.Info("iteration reviewed", "iteration", rec.Iteration, "score", rec.Score)
		},
	}

	if req.ReferencesFolder != "" {
		if w.deps.Embedder == nil {
			w.fail(log, job, "starting", ErrNoEmbedder)
			return
		}
		base, err := knowledge.Open(req.ReferencesFolder, w.deps.Embedder, w.deps.Knowledge)
		if err != nil {
			w.fail(log, job, "starting", err)
			return
		}
		defer base.Close()
		mu := w.locks.get(base.Folder)
		cfg.Retriever = &lockedRetriever{next: base.Retriever, mu: mu}
		cfg.Indexer = &lockedIndexer{
			next:      base.Indexer,
			retriever: base.Retriever,
			mu:        mu,
			job:       job,
		}
	}

	draft, meta, err := loop.New(cfg).Run(ctx, loop.Options{
		Idea:            req.Idea,
		MaxIters:        req.MaxIters,
		AcceptThreshold: req.AcceptThreshold,
	})
	if err != nil {
		w.fail(log, job, "running", err)
		return
	}
	job.Complete(draft, meta)
	log.Info("run completed", "iterations", meta.IterationCount, "score", meta.Score, "accepted", meta.Accepted)
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	log.Error("run failed", "phase", phase, "error", err)
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, phase)
}

// folderLocks guards each knowledge folder: indexing holds the write lock,
// retrieval the read lock.
type folderLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newFolderLocks() *folderLocks {
	return &folderLocks{locks: make(map[string]*sync.RWMutex)}
}

func (f *folderLocks) get(folder string) *sync.RWMutex {
	if abs, err := filepath.Abs(folder); err == nil {
		folder = abs
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.locks[folder]
	if !ok {
		m = &sync.RWMutex{}
		f.locks[folder] = m
	}
	return m
}

// lockedIndexer indexes under the folder lock and skips the work when a
// concurrent run finished indexing first.
type lockedIndexer struct {
	next      loop.Indexer
	retriever loop.Retriever
	mu        *sync.RWMutex
	job       *Job
}

func (l *lockedIndexer) Index(ctx context.Context) (knowledge.IndexStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retriever.IsIndexed(ctx) {
		return knowledge.IndexStats{}, nil
	}
	l.job.SetStatus(StatusIndexing, "indexing")
	stats, err := l.next.Index(ctx)
	l.job.SetStatus(StatusRunning, "retrieving")
	return stats, err
}

// lockedRetriever reads under the folder's read lock so a concurrent
// rebuild is never observed half done.
type lockedRetriever struct {
	next loop.Retriever
	mu   *sync.RWMutex
}

func (l *lockedRetriever) Retrieve(ctx context.Context, query string, topK int) ([]knowledge.Reference, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.next.Retrieve(ctx, query, topK)
}

func (l *lockedRetriever) IsIndexed(ctx context.Context) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.next.IsIndexed(ctx)
}
