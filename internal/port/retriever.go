package port

import (
	"context"

	"divrag/internal/domain"
)

// Filter aliases the domain filter so store and retriever contracts
// share one predicate type.
type Filter = domain.Filter

// Retriever retrieves scored candidates for a query. The limit is a
// hard cap, not a hint. The filter is passed through unmodified.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int, filter *Filter) ([]domain.Candidate, error)
}
