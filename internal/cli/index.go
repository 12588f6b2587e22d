package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"divrag/config"
	"divrag/internal/adapter/chunker"
	"divrag/internal/adapter/embedding"
	"divrag/internal/adapter/fs"
	"divrag/internal/usecase"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index files for retrieval",
	Long: `Index files in the specified directory into the configured
vector store. Each file is split into passages, embedded, and upserted.

Examples:
  divrag index .                 # Index current directory
  divrag index /path/to/project  # Index specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := rootDir
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	if err := config.EnsureDataDir(rootDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	embedder, err := buildEmbedder()
	if err != nil {
		return err
	}

	vs, err := buildVectorStore(embedder.Dimension())
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	defer vs.Close()

	dispatcher := embedding.NewDispatcher(embedder, cfg.Embedding.BatchSize, cfg.Embedding.Concurrency, logger)
	walker := fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes)
	chk := chunker.NewLineChunker(cfg.Index.ChunkLines, cfg.Index.ChunkOverlap)

	ingestUC := usecase.NewIngestUseCase(walker, chk, dispatcher, vs, nil, logger)

	fmt.Printf("Scanning %s...\n", path)

	// The bar is sized lazily: total batch count is only known once
	// the dispatcher has split the passages.
	var bar *progressbar.ProgressBar
	var barMu sync.Mutex

	progress := func(completed, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		_ = bar.Set(completed)
	}

	result, err := ingestUC.Ingest(cmd.Context(), path, progress)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files processed:  %d\n", result.FilesProcessed)
	fmt.Printf("  Passages created: %d\n", result.PassagesCreated)
	fmt.Printf("  Duration:         %s\n", result.Duration.Round(10*time.Millisecond))

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return nil
}
