package usecase

import (
	"context"

	"go.uber.org/zap"

	"divrag/internal/domain"
	"divrag/internal/port"
)

// RetrieveUseCase runs queries through the configured retriever chain
// and applies the minimum-score cutoff.
type RetrieveUseCase struct {
	retriever port.Retriever
	minScore  float64 // drop results scoring below this (0 = disabled)
	logger    *zap.Logger
}

func NewRetrieveUseCase(retriever port.Retriever, minScore float64, logger *zap.Logger) *RetrieveUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrieveUseCase{
		retriever: retriever,
		minScore:  minScore,
		logger:    logger,
	}
}

// Retrieve returns up to topK candidates for the query.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string, topK int, filter *port.Filter) ([]domain.Candidate, error) {
	results, err := u.retriever.Retrieve(ctx, query, topK, filter)
	if err != nil {
		return nil, err
	}

	if u.minScore > 0 {
		results = u.filterByScore(results)
	}

	u.logger.Debug("retrieve complete",
		zap.String("query", query),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)))

	return results, nil
}

func (u *RetrieveUseCase) filterByScore(results []domain.Candidate) []domain.Candidate {
	filtered := make([]domain.Candidate, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
