package compute

// SequentialBackend computes similarity primitives on the calling
// goroutine. It is always available and is the fallback for small
// candidate sets where fan-out costs more than it saves.
type SequentialBackend struct{}

func NewSequentialBackend() *SequentialBackend {
	return &SequentialBackend{}
}

func (b *SequentialBackend) Name() string { return NameSequential }

func (b *SequentialBackend) Available() bool { return true }

func (b *SequentialBackend) BatchSimilarity(query []float32, vectors [][]float32) ([]float64, error) {
	if err := checkUniformDim(len(query), vectors); err != nil {
		return nil, err
	}
	scores := make([]float64, len(vectors))
	nq := norm(query)
	for i, v := range vectors {
		scores[i] = dotNormalized(query, v, nq, norm(v))
	}
	return scores, nil
}

func (b *SequentialBackend) PairwiseSimilarity(rows, cols [][]float32) ([]float64, error) {
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
	for i, r := range rows {
		base := i * len(cols)
		for j, c := range cols {
			matrix[base+j] = dotNormalized(r, c, rowNorms[i], colNorms[j])
		}
	}
	return matrix, nil
}

func (b *SequentialBackend) RowMax(matrix []float64, rows, cols int) ([]float64, error) {
	if err := checkMatrixShape(matrix, rows, cols); err != nil {
		return nil, err
	}
	maxes := make([]float64, rows)
	for i := 0; i < rows; i++ {
		row := matrix[i*cols : (i+1)*cols]
		best := row[0]
		for _, v := range row[1:] {
			if v > best {
				best = v
			}
		}
		maxes[i] = best
	}
	return maxes, nil
}

var _ Backend = (*SequentialBackend)(nil)
