package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docloop/internal/chunker"
	"github.com/dgallion1/docloop/internal/embedding"
	"github.com/dgallion1/docloop/internal/parser"
	"github.com/dgallion1/docloop/internal/vectorstore"
)

// IndexStats summarizes one indexing pass.
type IndexStats struct {
	Files        int `json:"files"`
	Skipped      int `json:"skipped"`
	Chunks       int `json:"chunks"`
	ApproxTokens int `json:"approx_tokens"`
}

// Indexer walks a knowledge folder and rebuilds its vector collection.
type Indexer struct {
	folder   string
	store    *vectorstore.Store
	embedder embedding.Embedder
	chunkCfg chunker.Config
	parseOpt parser.Options
	log      *slog.Logger
}

// NewIndexer creates an indexer for folder. The store is owned by the caller.
func NewIndexer(folder string, store *vectorstore.Store, embedder embedding.Embedder, chunkCfg chunker.Config, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Indexer{
		folder:   folder,
		store:    store,
		embedder: embedder,
		chunkCfg: chunkCfg,
		log:      log.With("folder", folder),
	}
}

type document struct {
	content      string
	filepath     string
	lastModified string
}

type chunk struct {
	content string
	doc     *document
	chunkID int
}

// Index replaces the folder's collection with freshly embedded chunks of
// every indexable file. Unreadable files are logged and skipped. When no
// chunks result or embedding fails the existing collection is left untouched.
func (ix *Indexer) Index(ctx context.Context) (IndexStats, error) {
	var stats IndexStats
	ix.log.Info("indexing knowledge base", "store", ix.store.Path())

	docs, skipped, err := ix.loadFolder()
	if err != nil {
		return stats, err
	}
	stats.Files = len(docs)
	stats.Skipped = skipped

	var chunks []chunk
	for _, doc := range docs {
		for i, text := range chunker.Split(doc.content, ix.chunkCfg) {
			chunks = append(chunks, chunk{content: text, doc: doc, chunkID: i})
			stats.ApproxTokens += chunker.EstimateTokens(text)
		}
	}
	stats.Chunks = len(chunks)
	ix.log.Info("loaded documents", "files", stats.Files, "chunks", stats.Chunks, "skipped", stats.Skipped)

	if len(chunks) == 0 {
		ix.log.Warn("no documents to index")
		return stats, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.content
	}
	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return stats, fmt.Errorf("embedding chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return stats, fmt.Errorf("embedding chunks: expected %d vectors, got %d", len(chunks), len(vectors))
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vectorstore.Entry{
			ID:       fmt.Sprintf("%s_chunk_%d", c.doc.filepath, c.chunkID),
			Document: c.content,
			Metadata: vectorstore.Metadata{
				Filepath:     c.doc.filepath,
				ChunkID:      c.chunkID,
				LastModified: c.doc.lastModified,
			},
			Embedding: vectors[i],
		}
	}
	if err := ix.store.DeleteCollection(ctx, CollectionName); err != nil && !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return stats, fmt.Errorf("dropping collection: %w", err)
	}
	coll, err := ix.store.CreateCollection(ctx, CollectionName)
	if err != nil {
		return stats, err
	}
	if err := coll.Add(ctx, entries); err != nil {
		return stats, fmt.Errorf("storing chunks: %w", err)
	}

	ix.log.Info("indexed chunks", "collection", coll.Name(), "chunks", len(entries), "approx_tokens", stats.ApproxTokens)
	return stats, nil
}

// loadFolder reads every indexable file with non-blank text. It returns the
// count of files that failed to read or parse.
func (ix *Indexer) loadFolder() ([]*document, int, error) {
	var docs []*document
	skipped := 0

	err := filepath.WalkDir(ix.folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == ix.folder {
				return err
			}
			ix.log.Warn("could not access path", "path", path, "error", err)
			skipped++
			return nil
		}
		if d.IsDir() {
			if path != ix.folder && parser.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(ix.folder, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !parser.ShouldIndex(rel) {
			return nil
		}

		doc, err := ix.readDocument(path, rel)
		if err != nil {
			ix.log.Warn("could not process file", "filepath", rel, "error", err)
			skipped++
			return nil
		}
		if strings.TrimSpace(doc.content) == "" {
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, skipped, fmt.Errorf("walking %s: %w", ix.folder, err)
	}
	return docs, skipped, nil
}

func (ix *Indexer) readDocument(path, rel string) (*document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	text, err := parser.ForFile(path, ix.parseOpt).Parse(f, rel)
	if err != nil {
		return nil, err
	}
	return &document{
		content:      text,
		filepath:     rel,
		lastModified: info.ModTime().Format(time.RFC3339),
	}, nil
}
