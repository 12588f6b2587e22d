package compute

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelBackend fans the row dimension of each primitive out across
// a fixed worker pool. Semantics are identical to SequentialBackend;
// only the scheduling differs. It reports itself unavailable on a
// single-core host, where fan-out cannot win.
type ParallelBackend struct {
	workers int
}

// NewParallelBackend creates a parallel backend with the given worker
// count. A non-positive count defaults to GOMAXPROCS.
func NewParallelBackend(workers int) *ParallelBackend {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &ParallelBackend{workers: workers}
}

func (b *ParallelBackend) Name() string { return NameParallel }

func (b *ParallelBackend) Available() bool { return b.workers > 1 }

func (b *ParallelBackend) BatchSimilarity(query []float32, vectors [][]float32) ([]float64, error) {
	if err := checkUniformDim(len(query), vectors); err != nil {
		return nil, err
	}
	scores := make([]float64, len(vectors))
	nq := norm(query)

	var g errgroup.Group
	g.SetLimit(b.workers)
	for _, sp := range spans(len(vectors), b.workers) {
		start, end := sp[0], sp[1]
		g.Go(func() error {
			for i := start; i < end; i++ {
				scores[i] = dotNormalized(query, vectors[i], nq, norm(vectors[i]))
			}
			return nil
		})
	}
	_ = g.Wait()
	return scores, nil
}

func (b *ParallelBackend) PairwiseSimilarity(rows, cols [][]float32) ([]float64, error) {
	if len(rows) == 0 || len(cols) == 0 {
		return []float64{}, nil
	}
	dim := len(rows[0])
	if err := checkUniformDim(dim, rows); err != nil {
		return nil, err
	}
	if err := checkUniformDim(dim, cols); err != nil {
		return nil, err
	}

	rowNorms := norms(rows)
	colNorms := norms(cols)
	matrix := make([]float64, len(rows)*len(cols))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for _, sp := range spans(len(rows), b.workers) {
		start, end := sp[0], sp[1]
		g.Go(func() error {
			for i := start; i < end; i++ {
				base := i * len(cols)
				for j, c := range cols {
					matrix[base+j] = dotNormalized(rows[i], c, rowNorms[i], colNorms[j])
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return matrix, nil
}

func (b *ParallelBackend) RowMax(matrix []float64, rows, cols int) ([]float64, error) {
	if err := checkMatrixShape(matrix, rows, cols); err != nil {
		return nil, err
	}
	maxes := make([]float64, rows)

	var g errgroup.Group
	g.SetLimit(b.workers)
	for _, sp := range spans(rows, b.workers) {
		start, end := sp[0], sp[1]
		g.Go(func() error {
			for i := start; i < end; i++ {
				row := matrix[i*cols : (i+1)*cols]
				best := row[0]
				for _, v := range row[1:] {
					if v > best {
						best = v
					}
				}
				maxes[i] = best
			}
			return nil
		})
	}
	_ = g.Wait()
	return maxes, nil
}

// spans partitions [0, n) into at most parts contiguous half-open
// ranges. Each worker writes a disjoint slice region, so no locking
// is needed around the shared result buffers.
func spans(n, parts int) [][2]int {
	if n <= 0 {
		return nil
	}
	if parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts
	out := make([][2]int, 0, parts)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

var _ Backend = (*ParallelBackend)(nil)
