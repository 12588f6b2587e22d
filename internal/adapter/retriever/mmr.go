package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"divrag/internal/adapter/compute"
	"divrag/internal/adapter/embedding"
	"divrag/internal/domain"
	"divrag/internal/port"
)

const (
	// DefaultLambda favors relevance 70/30 over diversity.
	DefaultLambda = 0.7

	// MinOversample is the floor for the candidate pool multiplier.
	MinOversample = 2
)

var (
	ErrInvalidLimit  = errors.New("result limit must be positive")
	ErrInvalidLambda = errors.New("lambda must be a finite number")
)

// MMRRetriever re-ranks an oversampled candidate pool with Maximal
// Marginal Relevance:
//
//	MMR(c) = λ * relevance(c) - (1-λ) * max_similarity(c, selected)
//
// Relevance and the diversity penalty are cosine similarities in
// embedding space, computed through a compute backend chosen by
// candidate count. MMRRetriever implements port.Retriever, so it can
// itself serve as a base retriever for further composition.
type MMRRetriever struct {
	base       port.Retriever
	dispatcher *embedding.Dispatcher
	sequential compute.Backend
	parallel   compute.Backend
	metrics    *compute.Metrics
	lambda     float64
	oversample int
	threshold  int
	logger     *zap.Logger
}

// NewMMRRetriever creates an MMR retriever over a base retriever. A
// finite lambda outside [0,1] is clamped; NaN or Inf is rejected. An
// oversample below 2 is raised to 2. A non-positive threshold falls
// back to compute.DefaultParallelThreshold.
func NewMMRRetriever(
	base port.Retriever,
	dispatcher *embedding.Dispatcher,
	lambda float64,
	oversample int,
	threshold int,
	logger *zap.Logger,
) (*MMRRetriever, error) {
	if math.IsNaN(lambda) || math.IsInf(lambda, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidLambda, lambda)
	}
	if lambda < 0 {
		lambda = 0
	} else if lambda > 1 {
		lambda = 1
	}
	if oversample < MinOversample {
		oversample = MinOversample
	}
	if threshold <= 0 {
		threshold = compute.DefaultParallelThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MMRRetriever{
		base:       base,
		dispatcher: dispatcher,
		sequential: compute.NewSequentialBackend(),
		parallel:   compute.NewParallelBackend(0),
		metrics:    compute.NewMetrics(),
		lambda:     lambda,
		oversample: oversample,
		threshold:  threshold,
		logger:     logger,
	}, nil
}

// SetBackends overrides the similarity backends.
func (r *MMRRetriever) SetBackends(sequential, parallel compute.Backend) {
	r.sequential = sequential
	r.parallel = parallel
}

// Metrics returns a point-in-time snapshot of the backend counters.
func (r *MMRRetriever) Metrics() compute.Snapshot {
	return r.metrics.Snapshot()
}

// Retrieve returns up to limit candidates ranked by MMR score. The
// filter is passed to the base retriever unmodified. Results carry
// their MMR score, not the base retrieval score: the output ranking
// reflects the relevance/diversity trade-off.
func (r *MMRRetriever) Retrieve(ctx context.Context, query string, limit int, filter *port.Filter) ([]domain.Candidate, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	candidates, err := r.base.Retrieve(ctx, query, limit*r.oversample, filter)
	if err != nil {
		return nil, fmt.Errorf("base retrieval failed: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// One dispatcher call embeds the query and every candidate text.
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}
	vectors, err := r.dispatcher.EmbedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	queryVec := vectors[0]
	embedded := make([]domain.EmbeddedCandidate, len(candidates))
	for i, c := range candidates {
		embedded[i] = domain.EmbeddedCandidate{Candidate: c, Vector: vectors[i+1]}
	}

	backend := compute.Choose(r.sequential, r.parallel, len(embedded), r.threshold)

	start := time.Now()
	selected, err := r.selectDiverse(backend, queryVec, embedded, limit)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	r.metrics.Record(backend.Name(), elapsed)

	r.logger.Debug("mmr selection complete",
		zap.String("backend", backend.Name()),
		zap.Int("candidates", len(embedded)),
		zap.Int("selected", len(selected)),
		zap.Duration("similarity", elapsed))

	return selected, nil
}

// selectDiverse runs the greedy MMR loop. Each iteration depends on
// the previous selection, so the loop is sequential; only the
// within-iteration similarity work is delegated to the backend.
func (r *MMRRetriever) selectDiverse(
	backend compute.Backend,
	queryVec []float32,
	embedded []domain.EmbeddedCandidate,
	limit int,
) ([]domain.Candidate, error) {
	vectors := make([][]float32, len(embedded))
	for i, e := range embedded {
		vectors[i] = e.Vector
	}

	// A single backend call scores relevance for all candidates.
	relevance, err := backend.BatchSimilarity(queryVec, vectors)
	if err != nil {
		return nil, fmt.Errorf("relevance scoring: %w", err)
	}

	remaining := make([]int, len(embedded))
	for i := range remaining {
		remaining[i] = i
	}
	selected := make([]int, 0, limit)
	out := make([]domain.Candidate, 0, limit)

	for len(out) < limit && len(remaining) > 0 {
		// With nothing selected yet the diversity penalty is zero, so
		// the first pick is pure relevance.
		penalty := make([]float64, len(remaining))
		if len(selected) > 0 {
			rows := make([][]float32, len(remaining))
			for i, idx := range remaining {
				rows[i] = embedded[idx].Vector
			}
			cols := make([][]float32, len(selected))
			for j, idx := range selected {
				cols[j] = embedded[idx].Vector
			}
			matrix, err := backend.PairwiseSimilarity(rows, cols)
			if err != nil {
				return nil, fmt.Errorf("diversity scoring: %w", err)
			}
			penalty, err = backend.RowMax(matrix, len(rows), len(cols))
			if err != nil {
				return nil, fmt.Errorf("diversity reduction: %w", err)
			}
		}

		bestPos := 0
		bestScore := math.Inf(-1)
		for i, idx := range remaining {
			score := r.lambda*relevance[idx] - (1-r.lambda)*penalty[i]
			// Strictly greater: ties keep the earlier candidate.
			if score > bestScore {
				bestScore = score
				bestPos = i
			}
		}

		idx := remaining[bestPos]
		cand := embedded[idx].Candidate
		cand.Score = bestScore
		out = append(out, cand)
		selected = append(selected, idx)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return out, nil
}

var _ port.Retriever = (*MMRRetriever)(nil)
