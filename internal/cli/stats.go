package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	embedder, err := buildEmbedder()
	if err != nil {
		return err
	}

	vs, err := buildVectorStore(embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer vs.Close()

	count, err := vs.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count vectors: %w", err)
	}

	fmt.Printf("Store backend:  %s\n", cfg.Store.Backend)
	fmt.Printf("Vectors stored: %d\n", count)
	fmt.Printf("Embedding:      %s (%s, dim %d)\n", cfg.Embedding.Provider, embedder.ModelName(), embedder.Dimension())
	return nil
}
