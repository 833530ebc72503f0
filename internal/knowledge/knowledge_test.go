package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docloop/internal/chunker"
	"github.com/dgallion1/docloop/internal/vectorstore"
)

// letterEmbedder maps text to letter frequencies, enough for stable ranking.
type letterEmbedder struct {
	docCalls int
}

func letterVector(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func (e *letterEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.docCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letterVector(t)
	}
	return out, nil
}

func (e *letterEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return letterVector(text), nil
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setup(t *testing.T) (string, *vectorstore.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := vectorstore.Open(vectorstore.PathFor(dir))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return dir, store
}

func TestIndexer_IndexesEligibleFiles(t *testing.T) {
	dir, store := setup(t)
	writeFile(t, dir, "fruit.md", "apples and apricots")
	writeFile(t, dir, "docs/zoo.txt", "zebras buzz")
	writeFile(t, dir, "blank.txt", "   \n\t")
	writeFile(t, dir, ".secret.md", "hidden")
	writeFile(t, dir, "lib.pyc", "bytecode")
	writeFile(t, dir, "node_modules/pkg/readme.md", "dependency")
	writeFile(t, dir, ".git/HEAD", "ref")

	emb := &letterEmbedder{}
	stats, err := NewIndexer(dir, store, emb, chunker.DefaultConfig(), nil).Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Files)
	require.Equal(t, 2, stats.Chunks)
	require.Equal(t, 1, emb.docCalls, "all chunks embed in one call")
	require.Positive(t, stats.ApproxTokens)

	coll, err := store.Collection(context.Background(), CollectionName)
	require.NoError(t, err)
	matches, err := coll.Query(context.Background(), letterVector("zebras"), 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "docs/zoo.txt_chunk_0", matches[0].ID)
	require.Equal(t, "docs/zoo.txt", matches[0].Metadata.Filepath)
	require.NotEmpty(t, matches[0].Metadata.LastModified)
}

func TestIndexer_ChunkIDsAreSequentialPerFile(t *testing.T) {
	dir, store := setup(t)
	writeFile(t, dir, "long.md", strings.Repeat("paragraph text here\n\n", 20))

	cfg := chunker.Config{ChunkSize: 60, ChunkOverlap: 0}
	stats, err := NewIndexer(dir, store, &letterEmbedder{}, cfg, nil).Index(context.Background())
	require.NoError(t, err)
	require.Greater(t, stats.Chunks, 1)

	coll, err := store.Collection(context.Background(), CollectionName)
	require.NoError(t, err)
	matches, err := coll.Query(context.Background(), letterVector("paragraph"), stats.Chunks)
	require.NoError(t, err)

	seen := map[int]bool{}
	for _, m := range matches {
		seen[m.Metadata.ChunkID] = true
		require.Equal(t, "long.md_chunk_"+strconv.Itoa(m.Metadata.ChunkID), m.ID)
	}
	for i := range stats.Chunks {
		require.True(t, seen[i], "missing chunk_id %d", i)
	}
}

func TestIndexer_ReindexReplacesCollection(t *testing.T) {
	dir, store := setup(t)
	ctx := context.Background()
	writeFile(t, dir, "a.md", "alpha")
	writeFile(t, dir, "b.md", "bravo")

	ix := NewIndexer(dir, store, &letterEmbedder{}, chunker.DefaultConfig(), nil)
	_, err := ix.Index(ctx)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "b.md")))
	stats, err := ix.Index(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Chunks)

	coll, err := store.Collection(ctx, CollectionName)
	require.NoError(t, err)
	n, err := coll.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

// flakyEmbedder fails document embedding once fail is set.
type flakyEmbedder struct {
	letterEmbedder
	fail bool
}

func (e *flakyEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if e.fail {
		return nil, errors.New("embedding quota exceeded")
	}
	return e.letterEmbedder.EmbedDocuments(ctx, texts)
}

func TestIndexer_EmbeddingFailureKeepsExistingIndex(t *testing.T) {
	dir, store := setup(t)
	ctx := context.Background()
	writeFile(t, dir, "a.md", "alpha")
	writeFile(t, dir, "b.md", "bravo")

	emb := &flakyEmbedder{}
	ix := NewIndexer(dir, store, emb, chunker.DefaultConfig(), nil)
	_, err := ix.Index(ctx)
	require.NoError(t, err)

	emb.fail = true
	writeFile(t, dir, "c.md", "charlie")
	_, err = ix.Index(ctx)
	require.ErrorContains(t, err, "embedding quota exceeded")

	retriever := NewRetriever(store, emb)
	require.True(t, retriever.IsIndexed(ctx))
	coll, err := store.Collection(ctx, CollectionName)
	require.NoError(t, err)
	n, err := coll.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestIndexer_EmptyFolderIsNoop(t *testing.T) {
	dir, store := setup(t)
	writeFile(t, dir, "empty.txt", "")

	emb := &letterEmbedder{}
	stats, err := NewIndexer(dir, store, emb, chunker.DefaultConfig(), nil).Index(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.Chunks)
	require.Equal(t, 0, emb.docCalls)
	require.False(t, NewRetriever(store, emb).IsIndexed(context.Background()))
}

func TestRetriever_OrderedByDistance(t *testing.T) {
	dir, store := setup(t)
	ctx := context.Background()
	writeFile(t, dir, "a.md", "aaaa aaaa")
	writeFile(t, dir, "b.md", "bbbb bbbb")
	writeFile(t, dir, "ab.md", "aaaa bbbb")
	writeFile(t, dir, "c.md", "cccc")

	emb := &letterEmbedder{}
	_, err := NewIndexer(dir, store, emb, chunker.DefaultConfig(), nil).Index(ctx)
	require.NoError(t, err)

	r := NewRetriever(store, emb)
	require.True(t, r.IsIndexed(ctx))

	refs, err := r.Retrieve(ctx, "aaa", 3)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	require.Equal(t, "a.md", refs[0].Filepath)
	require.Equal(t, "ab.md", refs[1].Filepath)
	for i := 1; i < len(refs); i++ {
		require.LessOrEqual(t, refs[i-1].Distance, refs[i].Distance)
	}
	require.Equal(t, "aaaa aaaa", refs[0].Content)
}

func TestRetriever_NotIndexed(t *testing.T) {
	_, store := setup(t)
	r := NewRetriever(store, &letterEmbedder{})

	require.False(t, r.IsIndexed(context.Background()))
	refs, err := r.Retrieve(context.Background(), "anything", DefaultTopK)
	require.NoError(t, err)
	require.Empty(t, refs)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "bananas")

	base, err := Open(dir, &letterEmbedder{}, Options{Chunk: chunker.DefaultConfig()})
	require.NoError(t, err)
	defer base.Close()

	ctx := context.Background()
	require.False(t, base.Retriever.IsIndexed(ctx))
	stats, err := base.Indexer.Index(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Files)
	require.True(t, base.Retriever.IsIndexed(ctx))

	_, err = Open(filepath.Join(dir, "notes.md"), &letterEmbedder{}, Options{})
	require.Error(t, err, "a file is not a knowledge folder")
	_, err = Open(filepath.Join(dir, "missing"), &letterEmbedder{}, Options{})
	require.Error(t, err)
}
