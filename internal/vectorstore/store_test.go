package vectorstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(PathFor(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(id string, vec ...float32) Entry {
	return Entry{
		ID:        id,
		Document:  "doc " + id,
		Metadata:  Metadata{Filepath: id + ".md", ChunkID: 0, LastModified: "2024-01-02T03:04:05Z"},
		Embedding: vec,
	}
}

func TestPathFor(t *testing.T) {
	got := PathFor("/kb")
	if got != filepath.Join("/kb", ".docloop", "index.db") {
		t.Errorf("unexpected path %q", got)
	}
}

func TestCollection_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Collection(ctx, "missing")
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
	if err := s.DeleteCollection(ctx, "missing"); !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound on delete, got %v", err)
	}
}

func TestCollection_CreateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.CreateCollection(ctx, "kb")
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, []Entry{entry("a", 1, 0)}))

	again, err := s.CreateCollection(ctx, "kb")
	require.NoError(t, err)
	n, err := again.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCollection_AddRejectsDuplicateIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.CreateCollection(ctx, "kb")
	require.NoError(t, err)
	err = c.Add(ctx, []Entry{entry("a", 1, 0), entry("a", 0, 1)})
	require.Error(t, err)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n, "failed batch must not leave partial rows")
}

func TestCollection_QueryOrdersByDistance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.CreateCollection(ctx, "kb")
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, []Entry{
		entry("far", -1, 0),
		entry("near", 1, 0.1),
		entry("mid", 0, 1),
		entry("exact", 2, 0),
	}))

	matches, err := c.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	ids := []string{matches[0].ID, matches[1].ID, matches[2].ID}
	require.Equal(t, []string{"exact", "near", "mid"}, ids)
	for i := 1; i < len(matches); i++ {
		if matches[i-1].Distance > matches[i].Distance {
			t.Errorf("distances not ascending at %d: %v > %v", i, matches[i-1].Distance, matches[i].Distance)
		}
	}
	require.InDelta(t, 0, matches[0].Distance, 1e-6)
	require.Equal(t, Metadata{Filepath: "exact.md", ChunkID: 0, LastModified: "2024-01-02T03:04:05Z"}, matches[0].Metadata)
	require.Equal(t, "doc exact", matches[0].Document)
}

func TestCollection_QueryFewerThanK(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.CreateCollection(ctx, "kb")
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, []Entry{entry("a", 1, 0)}))

	matches, err := c.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestDeleteCollection_RemovesEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c, err := s.CreateCollection(ctx, "kb")
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, []Entry{entry("a", 1, 0), entry("b", 0, 1)}))
	require.NoError(t, s.DeleteCollection(ctx, "kb"))

	_, err = s.Collection(ctx, "kb")
	require.ErrorIs(t, err, ErrCollectionNotFound)

	fresh, err := s.CreateCollection(ctx, "kb")
	require.NoError(t, err)
	n, err := fresh.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestFloat32RoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4028235e38}
	out := bytesToFloat32Slice(float32SliceToBytes(in))
	require.Equal(t, in, out)
}
