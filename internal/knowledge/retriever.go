package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/docloop/internal/embedding"
	"github.com/dgallion1/docloop/internal/vectorstore"
)

// Retriever answers similarity queries against an indexed folder.
type Retriever struct {
	store    *vectorstore.Store
	embedder embedding.Embedder
}

func NewRetriever(store *vectorstore.Store, embedder embedding.Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Retrieve returns up to topK references ordered by ascending distance. An
// unindexed folder yields no references.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Reference, error) {
	coll, err := r.store.Collection(ctx, CollectionName)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches, err := coll.Query(ctx, vec, topK)
	if err != nil {
		return nil, err
	}

	refs := make([]Reference, len(matches))
	for i, m := range matches {
		refs[i] = Reference{
			Content:  m.Document,
			Filepath: m.Metadata.Filepath,
			ChunkID:  m.Metadata.ChunkID,
			Distance: m.Distance,
		}
	}
	return refs, nil
}

// IsIndexed reports whether the collection exists and holds at least one
// entry. Storage errors count as not indexed.
func (r *Retriever) IsIndexed(ctx context.Context) bool {
	coll, err := r.store.Collection(ctx, CollectionName)
	if err != nil {
		return false
	}
	n, err := coll.Count(ctx)
	return err == nil && n > 0
}
