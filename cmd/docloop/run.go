package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docloop/internal/agents"
	"github.com/dgallion1/docloop/internal/draft"
	"github.com/dgallion1/docloop/internal/knowledge"
	"github.com/dgallion1/docloop/internal/llm"
	"github.com/dgallion1/docloop/internal/loop"
)

type runFlags struct {
	idea               string
	referencesFolder   string
	llmProvider        string
	embeddingProvider  string
	embeddingModel     string
	writerGuidelines   string
	reviewerGuidelines string
	output             string
	metadataOut        string
	htmlOut            string
	maxIters           int
	acceptThreshold    int
	acceptPolicy       string
	indexOnly          bool
	yolo               bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a document through the writer/reviewer loop",
		Long: `Generate a document from an idea.

The draft is written to --output after every revision, so an interrupted run
can be resumed by pointing --output at the same file.

Examples:
  docloop run --idea "A CLI for notes" --writer-guidelines w.md \
    --reviewer-guidelines r.md --output docs/notes.md
  docloop run --idea "..." --references-folder ./docs --accept-threshold 90 --yolo ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.idea, "idea", "", "Project idea to document")
	fl.StringVar(&f.referencesFolder, "references-folder", "", "Folder of reference documents to index and retrieve from")
	fl.StringVar(&f.llmProvider, "llm", "", "LLM provider: openai, gemini, groq or anthropic (default $LLM_PROVIDER)")
	fl.StringVar(&f.embeddingProvider, "embedding-provider", "", "Embedding provider: openai or gemini")
	fl.StringVar(&f.embeddingModel, "embedding-model", "", "Embedding model name")
	fl.StringVar(&f.writerGuidelines, "writer-guidelines", "", "File with writer guidelines")
	fl.StringVar(&f.reviewerGuidelines, "reviewer-guidelines", "", "File with reviewer guidelines")
	fl.StringVar(&f.output, "output", "", "Markdown file to write the document to")
	fl.StringVar(&f.metadataOut, "metadata-out", "", "Write run metadata as JSON to this file")
	fl.StringVar(&f.htmlOut, "html-out", "", "Also render the final document as HTML to this file")
	fl.IntVar(&f.maxIters, "max-iters", 3, "Maximum review iterations")
	fl.IntVar(&f.acceptThreshold, "accept-threshold", 85, "Score (1-100) at which a draft is accepted; setting it enables high iteration mode")
	fl.StringVar(&f.acceptPolicy, "accept-policy", "", "Acceptance policy: score or score_or_accept (default $ACCEPT_POLICY)")
	fl.BoolVar(&f.indexOnly, "index-only", false, "Only index --references-folder and exit")
	fl.BoolVar(&f.yolo, "yolo", false, "Answer clarifying questions automatically with the writer model")

	for _, name := range []string{"idea", "writer-guidelines", "reviewer-guidelines", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// iterationSettings resolves the iteration budget and threshold. An
// explicit threshold switches to high iteration mode.
func iterationSettings(cmd *cobra.Command, f *runFlags, cfg runDefaults) (maxIters, threshold int, err error) {
	maxIters, threshold = cfg.maxIters, cfg.threshold
	itersChanged := cmd.Flags().Changed("max-iters")
	if itersChanged {
		maxIters = f.maxIters
	}
	if maxIters < 1 {
		return 0, 0, loop.ErrInvalidMaxIters
	}

	if cmd.Flags().Changed("accept-threshold") {
		if f.acceptThreshold < 1 || f.acceptThreshold > 100 {
			return 0, 0, fmt.Errorf("--accept-threshold must be between 1 and 100, got %d", f.acceptThreshold)
		}
		threshold = f.acceptThreshold
		maxIters = loop.HighIterationCap
		if itersChanged {
			maxIters = max(loop.HighIterationCap, f.maxIters)
		}
	}
	return maxIters, threshold, nil
}

type runDefaults struct {
	maxIters  int
	threshold int
}

func (a *app) run(cmd *cobra.Command, f *runFlags) error {
	out := cmd.OutOrStdout()
	cfg := a.cfg
	if f.llmProvider != "" {
		cfg = cfg.WithLLMProvider(f.llmProvider)
	}
	if f.embeddingProvider != "" {
		cfg.EmbeddingProvider = strings.ToLower(f.embeddingProvider)
	}
	if f.embeddingModel != "" {
		cfg.EmbeddingModel = f.embeddingModel
	}
	if f.acceptPolicy != "" {
		cfg.AcceptPolicy = f.acceptPolicy
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	policy, err := loop.ParseAcceptPolicy(cfg.AcceptPolicy)
	if err != nil {
		return err
	}

	maxIters, threshold, err := iterationSettings(cmd, f, runDefaults{maxIters: cfg.MaxIters, threshold: cfg.AcceptThreshold})
	if err != nil {
		return err
	}
	if maxIters >= loop.HighIterationCap {
		fmt.Fprintf(out, "High iteration mode: up to %d iterations until score >= %d\n", maxIters, threshold)
	}

	writerGuidelines, err := readGuidelines(f.writerGuidelines)
	if err != nil {
		return err
	}
	reviewerGuidelines, err := readGuidelines(f.reviewerGuidelines)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a.cfg = cfg
	lcfg := loop.Config{
		WriterGuidelines:   writerGuidelines,
		ReviewerGuidelines: reviewerGuidelines,
		Policy:             policy,
		Provider:           cfg.LLMProvider,
		Out:                out,
		Log:                a.log,
	}

	if f.referencesFolder != "" {
		base, err := a.openKnowledge(ctx, f.referencesFolder, cfg.EmbeddingProvider, cfg.EmbeddingModel)
		if err != nil {
			return err
		}
		defer base.Close()

		if f.indexOnly {
			fmt.Fprintf(out, "Indexing references folder: %s\n", f.referencesFolder)
			stats, err := base.Indexer.Index(ctx)
			if err != nil {
				return err
			}
			printIndexStats(out, stats)
			return nil
		}
		lcfg.Indexer = base.Indexer
		lcfg.Retriever = base.Retriever
	} else if f.indexOnly {
		return errors.New("--index-only requires --references-folder")
	}

	stats := llm.NewStats(time.Hour)
	model, err := llm.New(ctx, cfg.LLM(cfg.LLMProvider), stats, a.log)
	if err != nil {
		return err
	}
	writer := agents.NewWriter(model, a.log)
	lcfg.Writer = writer
	lcfg.Reviewer = agents.NewReviewer(model, a.log)

	var interactive *loop.InteractiveResolver
	if f.yolo {
		lcfg.Resolver = loop.NewAutomatedResolver(writer, writerGuidelines, out)
	} else {
		interactive = loop.NewInteractiveResolver(cmd.InOrStdin(), out)
		lcfg.Resolver = interactive
	}
	stop := handleInterrupts(cancel, interactive)
	defer stop()

	final, meta, err := loop.New(lcfg).Run(ctx, loop.Options{
		Idea:            f.idea,
		MaxIters:        maxIters,
		AcceptThreshold: threshold,
		OutputFile:      f.output,
	})
	if err != nil {
		return fmt.Errorf("run failed (last draft kept in %s): %w", f.output, err)
	}

	if err := draft.Checkpoint(f.output, final); err != nil {
		return err
	}
	if f.metadataOut != "" {
		if err := writeMetadata(f.metadataOut, meta); err != nil {
			return err
		}
	}
	if f.htmlOut != "" {
		html, err := draft.RenderHTML(final)
		if err != nil {
			return err
		}
		if err := writeFile(f.htmlOut, []byte(html)); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, renderResult(resultSummary{
		Output:      f.output,
		MetadataOut: f.metadataOut,
		HTMLOut:     f.htmlOut,
		Meta:        meta,
		Threshold:   threshold,
	}))
	fmt.Fprintln(out, renderPreview(final, previewLines))
	return nil
}

// handleInterrupts makes the first SIGINT during a pending question skip that
// question; any other SIGINT or SIGTERM cancels the run.
func handleInterrupts(cancel context.CancelFunc, interactive *loop.InteractiveResolver) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-sigCh:
				if sig == syscall.SIGINT && interactive != nil && interactive.Interrupt() {
					continue
				}
				cancel()
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func readGuidelines(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading guidelines: %w", err)
	}
	return string(data), nil
}

func writeMetadata(path string, meta loop.RunMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printIndexStats(w io.Writer, stats knowledge.IndexStats) {
	fmt.Fprintf(w, "Indexed %d files (%d skipped) into %d chunks, about %d tokens\n",
		stats.Files, stats.Skipped, stats.Chunks, stats.ApproxTokens)
}
