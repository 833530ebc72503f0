package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docloop/internal/chunker"
	"github.com/dgallion1/docloop/internal/config"
	"github.com/dgallion1/docloop/internal/embedding"
	"github.com/dgallion1/docloop/internal/knowledge"
	"github.com/dgallion1/docloop/internal/parser"
)

// app carries state shared by every subcommand.
type app struct {
	verbose bool
	cfg     config.Config
	log     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "docloop",
		Short: "Draft documentation with a writer and reviewer feedback loop",
		Long: `docloop turns a short project idea into a Markdown document.

A writer model drafts the document, a reviewer model scores it and asks for
patches or rewrites, and the loop repeats until the score reaches the accept
threshold. Passages retrieved from an optional references folder ground both
roles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.cfg = config.Load()
			a.log = newLogger(cmd.ErrOrStderr(), a.verbose)
		},
	}
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newRunCmd(a),
		newIndexCmd(a),
		newSearchCmd(a),
		newServeCmd(a),
	)
	return cmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func (a *app) chunkConfig() chunker.Config {
	return chunker.Config{ChunkSize: a.cfg.ChunkSize, ChunkOverlap: a.cfg.ChunkOverlap}
}

func (a *app) knowledgeOptions() knowledge.Options {
	return knowledge.Options{
		Chunk:  a.chunkConfig(),
		Parser: parser.Options{PDFFallbackPdftotext: a.cfg.PDFFallbackPdftotext},
		Log:    a.log,
	}
}

// openKnowledge validates folder and opens its index with the configured
// embedder.
func (a *app) openKnowledge(ctx context.Context, folder, embProvider, embModel string) (*knowledge.Base, error) {
	if err := checkFolder(folder); err != nil {
		return nil, err
	}
	emb, err := embedding.New(ctx, a.cfg.Embedding(embProvider, embModel))
	if err != nil {
		return nil, err
	}
	return knowledge.Open(folder, emb, a.knowledgeOptions())
}

func checkFolder(folder string) error {
	info, err := os.Stat(folder)
	if err != nil {
		return fmt.Errorf("folder %s does not exist", folder)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", folder)
	}
	return nil
}
