package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newIndexCmd(a *app) *cobra.Command {
	var folder, embProvider, embModel string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a references folder for retrieval",
		Long: `Rebuild the vector index of a references folder.

The index lives in <folder>/.docloop/index.db and replaces any previous one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if embProvider != "" {
				a.cfg.EmbeddingProvider = strings.ToLower(embProvider)
			}
			if embModel != "" {
				a.cfg.EmbeddingModel = embModel
			}
			base, err := a.openKnowledge(cmd.Context(), folder, a.cfg.EmbeddingProvider, a.cfg.EmbeddingModel)
			if err != nil {
				return err
			}
			defer base.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexing %s\n", folder)
			stats, err := base.Indexer.Index(cmd.Context())
			if err != nil {
				return err
			}
			printIndexStats(out, stats)
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "References folder to index")
	cmd.Flags().StringVar(&embProvider, "embedding-provider", "", "Embedding provider: openai or gemini")
	cmd.Flags().StringVar(&embModel, "embedding-model", "", "Embedding model name")
	_ = cmd.MarkFlagRequired("folder")
	return cmd
}
