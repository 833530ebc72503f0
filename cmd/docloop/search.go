package main

import (
	"encoding/json"
	"io"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docloop/internal/knowledge"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		folder, query string
		topK          int
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search an indexed references folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if topK <= 0 {
				return fmt.Errorf("top-k must be positive, got %d", topK)
			}
			base, err := a.openKnowledge(cmd.Context(), folder, a.cfg.EmbeddingProvider, a.cfg.EmbeddingModel)
			if err != nil {
				return err
			}
			defer base.Close()

			out := cmd.OutOrStdout()
			if !base.Retriever.IsIndexed(cmd.Context()) {
				fmt.Fprintf(out, "%s is not indexed yet; run docloop index --folder %s\n", folder, folder)
				return nil
			}
			refs, err := base.Retriever.Retrieve(cmd.Context(), query, topK)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(refs, "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling JSON: %w", err)
				}
				fmt.Fprintf(out, "%s\n", data)
				return nil
			}
			printReferences(out, refs)
			return nil
		},
	}
	cmd.Flags().StringVar(&folder, "folder", "", "Indexed references folder")
	cmd.Flags().StringVar(&query, "query", "", "Search query")
	cmd.Flags().IntVar(&topK, "top-k", knowledge.DefaultTopK, "Maximum results to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	_ = cmd.MarkFlagRequired("folder")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func printReferences(w io.Writer, refs []knowledge.Reference) {
	if len(refs) == 0 {
		fmt.Fprintln(w, "No references found.")
		return
	}
	for i, ref := range refs {
		fmt.Fprintf(w, "%d. %s (chunk %d, distance %.4f)\n", i+1, ref.Filepath, ref.ChunkID, ref.Distance)
		fmt.Fprintf(w, "   %s\n", truncate(strings.Join(strings.Fields(ref.Content), " "), 160))
	}
}

// truncate shortens s to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
