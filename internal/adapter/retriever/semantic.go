package retriever

import (
	"context"
	"fmt"

	"divrag/internal/domain"
	"divrag/internal/port"
)

// SemanticRetriever is a base retriever over a vector store: it embeds
// the query and returns the nearest stored passages as candidates.
type SemanticRetriever struct {
	store    port.VectorStore
	embedder port.Embedder
}

func NewSemanticRetriever(store port.VectorStore, embedder port.Embedder) *SemanticRetriever {
	return &SemanticRetriever{
		store:    store,
		embedder: embedder,
	}
}

func (r *SemanticRetriever) Retrieve(ctx context.Context, query string, limit int, filter *port.Filter) ([]domain.Candidate, error) {
	if r.store == nil || r.embedder == nil {
		return nil, fmt.Errorf("semantic search not available: embeddings not configured")
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	results, err := r.store.Search(ctx, vectors[0], limit, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(results))
	for _, res := range results {
		candidates = append(candidates, domain.Candidate{
			ID:       res.ID,
			Text:     res.Content,
			Score:    res.Score,
			Metadata: res.Metadata,
		})
	}
	return candidates, nil
}

var _ port.Retriever = (*SemanticRetriever)(nil)
