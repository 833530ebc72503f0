package knowledge

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/dgallion1/docloop/internal/chunker"
	"github.com/dgallion1/docloop/internal/embedding"
	"github.com/dgallion1/docloop/internal/parser"
	"github.com/dgallion1/docloop/internal/vectorstore"
)

// Options tunes an opened knowledge base.
type Options struct {
	Chunk  chunker.Config
	Parser parser.Options
	Log    *slog.Logger
}

// Base is a knowledge folder with its vector store opened.
type Base struct {
	Folder    string
	Store     *vectorstore.Store
	Indexer   *Indexer
	Retriever *Retriever
}

// Open opens the vector store kept inside folder. The folder must be an
// existing directory.
func Open(folder string, embedder embedding.Embedder, opts Options) (*Base, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("knowledge folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge folder %s is not a directory", folder)
	}

	store, err := vectorstore.Open(vectorstore.PathFor(folder))
	if err != nil {
		return nil, err
	}
	ix := NewIndexer(folder, store, embedder, opts.Chunk, opts.Log)
	ix.parseOpt = opts.Parser
	return &Base{
		Folder:    folder,
		Store:     store,
		Indexer:   ix,
		Retriever: NewRetriever(store, embedder),
	}, nil
}

func (b *Base) Close() error {
	return b.Store.Close()
}
