package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docloop/internal/agents"
	"github.com/dgallion1/docloop/internal/api"
	"github.com/dgallion1/docloop/internal/embedding"
	"github.com/dgallion1/docloop/internal/llm"
	"github.com/dgallion1/docloop/internal/pipeline"
)

func newServeCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve runs, indexing and search over HTTP.

Every /api route requires "Authorization: Bearer $DOCLOOP_API_KEY". Runs are
queued on a worker pool and always answer clarifying questions automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Listen port (default $PORT or 8090)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	cfg := a.cfg
	// The server always logs at info or below.
	log := a.log
	if !a.verbose {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Initialize providers.
	stats := llm.NewStats(time.Hour)
	llmCfg := cfg.LLM(cfg.LLMProvider)
	model, err := llm.New(ctx, llmCfg, stats, log)
	if err != nil {
		return err
	}
	emb, err := embedding.New(ctx, cfg.Embedding(cfg.EmbeddingProvider, cfg.EmbeddingModel))
	if err != nil {
		log.Warn("embeddings unavailable, references folders disabled", "provider", cfg.EmbeddingProvider, "error", err)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Writer:    agents.NewWriter(model, log),
		Reviewer:  agents.NewReviewer(model, log),
		Embedder:  emb,
		Knowledge: a.knowledgeOptions(),
		Provider:  cfg.LLMProvider,
	}, log)
	orch.Start(ctx)

	modelName := llmCfg.Model
	if modelName == "" {
		modelName = llm.DefaultModels[cfg.LLMProvider]
	}
	srv := api.NewServer(orch, stats, modelName, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting docloop", "port", cfg.Port, "provider", cfg.LLMProvider, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
