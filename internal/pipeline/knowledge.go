package pipeline

import (
	"context"
	"errors"

	"github.com/dgallion1/docloop/internal/knowledge"
)

// ErrNoEmbedder is returned when a knowledge operation is requested but no
// embedding provider is configured.
var ErrNoEmbedder = errors.New("no embedding provider configured")

// SearchResult is the answer to a folder search.
type SearchResult struct {
	Indexed    bool                  `json:"indexed"`
	References []knowledge.Reference `json:"references"`
}

// Index rebuilds folder's knowledge index, serialized with any run that is
// indexing the same folder.
func (o *Orchestrator) Index(ctx context.Context, folder string) (knowledge.IndexStats, error) {
	base, err := o.openKnowledge(folder)
	if err != nil {
		return knowledge.IndexStats{}, err
	}
	defer base.Close()

	mu := o.locks.get(base.Folder)
	mu.Lock()
	defer mu.Unlock()
	return base.Indexer.Index(ctx)
}

// Search retrieves up to topK references from an indexed folder. It never
// triggers indexing and waits for any rebuild of the folder in progress.
func (o *Orchestrator) Search(ctx context.Context, folder, query string, topK int) (SearchResult, error) {
	base, err := o.openKnowledge(folder)
	if err != nil {
		return SearchResult{}, err
	}
	defer base.Close()

	mu := o.locks.get(base.Folder)
	mu.RLock()
	defer mu.RUnlock()
	if !base.Retriever.IsIndexed(ctx) {
		return SearchResult{References: []knowledge.Reference{}}, nil
	}
	refs, err := base.Retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return SearchResult{}, err
	}
	if refs == nil {
		refs = []knowledge.Reference{}
	}
	return SearchResult{Indexed: true, References: refs}, nil
}

func (o *Orchestrator) openKnowledge(folder string) (*knowledge.Base, error) {
	if o.deps.Embedder == nil {
		return nil, ErrNoEmbedder
	}
	return knowledge.Open(folder, o.deps.Embedder, o.deps.Knowledge)
}
