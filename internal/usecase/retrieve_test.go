package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divrag/internal/domain"
	"divrag/internal/port"
)

type staticRetriever struct {
	results []domain.Candidate
	err     error

	gotQuery  string
	gotLimit  int
	gotFilter *port.Filter
}

func (r *staticRetriever) Retrieve(ctx context.Context, query string, limit int, filter *port.Filter) ([]domain.Candidate, error) {
	r.gotQuery = query
	r.gotLimit = limit
	r.gotFilter = filter
	return r.results, r.err
}

func TestRetrievePassesThroughArguments(t *testing.T) {
	base := &staticRetriever{results: []domain.Candidate{{ID: "a", Score: 0.9}}}
	filter := &port.Filter{Metadata: map[string]string{"lang": "go"}}

	u := NewRetrieveUseCase(base, 0, nil)
	results, err := u.Retrieve(context.Background(), "how to sort", 5, filter)
	require.NoError(t, err)

	assert.Len(t, results, 1)
	assert.Equal(t, "how to sort", base.gotQuery)
	assert.Equal(t, 5, base.gotLimit)
	assert.Same(t, filter, base.gotFilter)
}

func TestRetrieveFiltersByMinScore(t *testing.T) {
	base := &staticRetriever{results: []domain.Candidate{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.4},
		{ID: "c", Score: 0.7},
	}}

	u := NewRetrieveUseCase(base, 0.5, nil)
	results, err := u.Retrieve(context.Background(), "q", 3, nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
}

func TestRetrieveZeroThresholdKeepsAll(t *testing.T) {
	base := &staticRetriever{results: []domain.Candidate{
		{ID: "a", Score: -0.2},
		{ID: "b", Score: 0.0},
	}}

	u := NewRetrieveUseCase(base, 0, nil)
	results, err := u.Retrieve(context.Background(), "q", 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrievePropagatesError(t *testing.T) {
	wantErr := errors.New("store offline")
	base := &staticRetriever{err: wantErr}

	u := NewRetrieveUseCase(base, 0, nil)
	_, err := u.Retrieve(context.Background(), "q", 3, nil)
	require.ErrorIs(t, err, wantErr)
}
