package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"divrag/internal/adapter/cache"
	"divrag/internal/adapter/embedding"
	"divrag/internal/adapter/retriever"
	"divrag/internal/domain"
	"divrag/internal/port"
	"divrag/internal/usecase"
)

var (
	queryText    string
	queryTopK    int
	queryJSON    bool
	queryNoMMR   bool
	queryLang    string
	queryMetrics bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search indexed files",
	Long: `Search for relevant passages using embedding similarity with
MMR diversity selection.

Examples:
  divrag query -q "authentication handler"
  divrag query -q "database connection" --top-k 10 --json
  divrag query -q "error handling" --lang go`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryNoMMR, "no-mmr", false, "disable MMR diversity selection")
	queryCmd.Flags().StringVar(&queryLang, "lang", "", "restrict results to a language")
	queryCmd.Flags().BoolVar(&queryMetrics, "metrics", false, "print similarity backend metrics")
	_ = queryCmd.MarkFlagRequired("query")
}

// queryResult is the JSON output shape for one result.
type queryResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func runQuery(cmd *cobra.Command, args []string) error {
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
	semantic := retriever.NewSemanticRetriever(vs, embedder)

	var chain port.Retriever = semantic
	var mmr *retriever.MMRRetriever
	if !queryNoMMR {
		mmr, err = retriever.NewMMRRetriever(
			semantic,
			dispatcher,
			cfg.Retrieve.MMRLambda,
			cfg.Retrieve.Oversample,
			cfg.Retrieve.ParallelThreshold,
			logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create retriever: %w", err)
		}
		chain = mmr
	}

	if cfg.Retrieve.CacheSize > 0 {
		ttl := time.Duration(cfg.Retrieve.CacheTTLSeconds) * time.Second
		chain = cache.NewCachedRetriever(chain, cache.NewQueryCache(cfg.Retrieve.CacheSize, ttl))
	}

	retrieveUC := usecase.NewRetrieveUseCase(chain, cfg.Retrieve.MinScoreThreshold, logger)

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	var filter *port.Filter
	if queryLang != "" {
		filter = &port.Filter{Metadata: map[string]string{"lang": queryLang}}
	}

	candidates, err := retrieveUC.Retrieve(cmd.Context(), queryText, topK, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	printResults(candidates)

	if queryMetrics && mmr != nil {
		printMetrics(mmr)
	}

	return nil
}

func printResults(candidates []domain.Candidate) {
	if queryJSON {
		results := make([]queryResult, len(candidates))
		for i, c := range candidates {
			results[i] = queryResult{
				ID:       c.ID,
				Score:    c.Score,
				Text:     c.Text,
				Metadata: c.Metadata,
			}
		}
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return
	}

	if len(candidates) == 0 {
		fmt.Println("No results found.")
		return
	}

	fmt.Printf("Found %d results for: %s\n\n", len(candidates), queryText)
	for i, c := range candidates {
		loc := c.Metadata["path"]
		if start, ok := c.Metadata["start_line"]; ok {
			loc = fmt.Sprintf("%s:L%s-%s", loc, start, c.Metadata["end_line"])
		}
		fmt.Printf("--- [%d] %s (score: %.3f) ---\n", i+1, loc, c.Score)
		text := c.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
}

func printMetrics(mmr *retriever.MMRRetriever) {
	snap := mmr.Metrics()
	fmt.Printf("Backend metrics:\n")
	fmt.Printf("  cpu:   %d ops, avg %s\n", snap.Sequential.Operations, snap.Sequential.Average)
	fmt.Printf("  accel: %d ops, avg %s\n", snap.Parallel.Operations, snap.Parallel.Average)
}
