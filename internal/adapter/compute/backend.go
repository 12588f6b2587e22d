package compute

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultParallelThreshold is the candidate count at which the
	// parallel backend becomes worth its scheduling overhead.
	DefaultParallelThreshold = 100

	NameSequential = "cpu"
	NameParallel   = "accel"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrShapeMismatch     = errors.New("matrix shape mismatch")
)

// Backend provides vector-similarity primitives. Implementations must
// agree on semantics and differ only in how the work is scheduled.
type Backend interface {
	Name() string

	// Available reports whether the backend can run on this host.
	Available() bool

	// BatchSimilarity returns the cosine similarity between the query
	// and each vector. Result length equals len(vectors).
	BatchSimilarity(query []float32, vectors [][]float32) ([]float64, error)

	// PairwiseSimilarity returns the cosine similarity between every
	// row and every column vector as a flattened row-major matrix of
	// len(rows)*len(cols) entries.
	PairwiseSimilarity(rows, cols [][]float32) ([]float64, error)

	// RowMax reduces a flattened rows×cols matrix to the maximum of
	// each row. Result length equals rows.
	RowMax(matrix []float64, rows, cols int) ([]float64, error)
}

// Choose picks the backend for a candidate set. This is a pure
// function of availability and size: the parallel backend is used only
// when it is available and the candidate count meets the threshold.
func Choose(sequential, parallel Backend, candidates, threshold int) Backend {
	if threshold <= 0 {
		threshold = DefaultParallelThreshold
	}
	if parallel != nil && parallel.Available() && candidates >= threshold {
		return parallel
	}
	return sequential
}

// dotNormalized computes dot(a, b) / (na * nb) with precomputed norms.
// A zero-magnitude vector yields 0, never NaN or Inf.
func dotNormalized(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func norms(vectors [][]float32) []float64 {
	out := make([]float64, len(vectors))
	for i, v := range vectors {
		out[i] = norm(v)
	}
	return out
}

// checkUniformDim verifies every vector has the given dimension.
func checkUniformDim(dim int, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}

func checkMatrixShape(matrix []float64, rows, cols int) error {
	if rows < 0 || cols < 0 {
		return fmt.Errorf("%w: negative shape %dx%d", ErrShapeMismatch, rows, cols)
	}
	if rows > 0 && cols == 0 {
		return fmt.Errorf("%w: row maximum undefined for %d rows with zero columns", ErrShapeMismatch, rows)
	}
	if len(matrix) != rows*cols {
		return fmt.Errorf("%w: %d values cannot form a %dx%d matrix", ErrShapeMismatch, len(matrix), rows, cols)
	}
	return nil
}
