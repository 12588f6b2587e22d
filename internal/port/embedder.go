package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string

	// OptimalBatchSize returns the provider's preferred batch size.
	// Advisory; the dispatcher uses it as the default batch size.
	OptimalBatchSize() int

	// MaxTokensPerRequest returns the provider's per-request token
	// limit. Advisory.
	MaxTokensPerRequest() int
}

// VectorStore stores and searches embedding vectors.
type VectorStore interface {
	// Upsert adds or updates vectors in the store.
	Upsert(ctx context.Context, items []VectorItem) error

	// Search finds the k nearest vectors to the query, optionally
	// constrained by a metadata filter.
	Search(ctx context.Context, query []float32, k int, filter *Filter) ([]VectorResult, error)

	// Delete removes vectors by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of vectors in the store.
	Count(ctx context.Context) (int, error)

	Close() error
}

// VectorItem represents a vector to be stored.
type VectorItem struct {
	ID       string            // Unique identifier (typically passage ID)
	Vector   []float32         // Embedding vector
	Content  string            // Original text
	Metadata map[string]string // Optional metadata
}

// VectorResult represents a search result.
type VectorResult struct {
	ID       string            // Passage ID
	Score    float64           // Similarity score (higher is better)
	Content  string            // Stored text
	Metadata map[string]string // Stored metadata
}
