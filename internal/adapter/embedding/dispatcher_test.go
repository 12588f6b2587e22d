package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProviderDown = errors.New("provider down")

// textVector is the deterministic embedding used by fakeEmbedder, so
// tests can verify index/vector correspondence after reordering.
func textVector(text string) []float32 {
	v := make([]float32, 4)
	for j, r := range text {
		if j >= len(v) {
			break
		}
		v[j] = float32(r)
	}
	v[3] = float32(len(text))
	return v
}

type fakeEmbedder struct {
	mu         sync.Mutex
	calls      int
	batchSizes []int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	failOnCall int  // 1-based call number that fails; 0 = never
	jitter     bool // scramble completion order
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls++
	call := f.calls
	f.batchSizes = append(f.batchSizes, len(texts))
	f.mu.Unlock()

	if f.failOnCall != 0 && call == f.failOnCall {
		return nil, errProviderDown
	}

	if f.jitter {
		time.Sleep(time.Duration(call%3) * time.Millisecond)
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = textVector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int           { return 4 }
func (f *fakeEmbedder) ModelName() string        { return "fake" }
func (f *fakeEmbedder) OptimalBatchSize() int    { return 8 }
func (f *fakeEmbedder) MaxTokensPerRequest() int { return 8192 }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func makeTexts(n int) []string {
	texts := make([]string, n)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%03d", i)
	}
	return texts
}

func TestEmbedAllPreservesInputOrder(t *testing.T) {
	fake := &fakeEmbedder{jitter: true}
	d := NewDispatcher(fake, 4, 3, nil)
	texts := makeTexts(23)

	got, err := d.EmbedAll(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, got, len(texts))
	for i, text := range texts {
		assert.Equal(t, textVector(text), got[i], "index %d", i)
	}
}

func TestEmbedAllCallCountIndependentOfConcurrency(t *testing.T) {
	const n, batchSize = 50, 7
	wantCalls := (n + batchSize - 1) / batchSize

	for _, concurrency := range []int{1, 2, 5, 50} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			fake := &fakeEmbedder{jitter: true}
			d := NewDispatcher(fake, batchSize, concurrency, nil)

			_, err := d.EmbedAll(context.Background(), makeTexts(n))
			require.NoError(t, err)
			assert.Equal(t, wantCalls, fake.callCount())
		})
	}
}

func TestEmbedAllRespectsConcurrencyCap(t *testing.T) {
	fake := &fakeEmbedder{jitter: true}
	d := NewDispatcher(fake, 2, 3, nil)

	_, err := d.EmbedAll(context.Background(), makeTexts(40))
	require.NoError(t, err)
	assert.LessOrEqual(t, fake.maxInFlight.Load(), int32(3))
}

func TestEmbedAllEmptyInput(t *testing.T) {
	fake := &fakeEmbedder{}
	d := NewDispatcher(fake, 10, 4, nil)

	got, err := d.EmbedAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, fake.callCount())
}

func TestEmbedAllSingleText(t *testing.T) {
	fake := &fakeEmbedder{}
	d := NewDispatcher(fake, 10, 4, nil)

	got, err := d.EmbedAll(context.Background(), []string{"only"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, textVector("only"), got[0])
	assert.Equal(t, 1, fake.callCount())
}

func TestEmbedAllBatchFailureFailsWholeCall(t *testing.T) {
	fake := &fakeEmbedder{failOnCall: 2}
	d := NewDispatcher(fake, 3, 2, nil)

	got, err := d.EmbedAll(context.Background(), makeTexts(12))
	require.ErrorIs(t, err, errProviderDown)
	assert.Nil(t, got)
}

func TestEmbedAllClampsConcurrency(t *testing.T) {
	fake := &fakeEmbedder{jitter: true}
	d := NewDispatcher(fake, 5, 0, nil) // clamped to 1

	_, err := d.EmbedAll(context.Background(), makeTexts(20))
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.maxInFlight.Load())
}

func TestEmbedAllDefaultsToProviderBatchSize(t *testing.T) {
	fake := &fakeEmbedder{}
	d := NewDispatcher(fake, 0, 2, nil) // OptimalBatchSize() == 8

	_, err := d.EmbedAll(context.Background(), makeTexts(20))
	require.NoError(t, err)
	assert.Equal(t, 3, fake.callCount()) // ceil(20/8)
}

func TestEmbedAllWithProgress(t *testing.T) {
	fake := &fakeEmbedder{jitter: true}
	d := NewDispatcher(fake, 4, 3, nil)

	var mu sync.Mutex
	var completed []int
	var totals []int

	_, err := d.EmbedAllWithProgress(context.Background(), makeTexts(18), func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, done)
		totals = append(totals, total)
	})
	require.NoError(t, err)

	wantBatches := 5 // ceil(18/4)
	require.Len(t, completed, wantBatches)
	sort.Ints(completed)
	for i, done := range completed {
		assert.Equal(t, i+1, done)
	}
	for _, total := range totals {
		assert.Equal(t, wantBatches, total)
	}
}

func TestEmbedStreamOrderedEmitsInInputOrder(t *testing.T) {
	fake := &fakeEmbedder{}
	d := NewDispatcher(fake, 4, 3, nil)
	texts := makeTexts(11)

	next := 0
	for item := range d.EmbedStreamOrdered(context.Background(), texts) {
		require.NoError(t, item.Err)
		assert.Equal(t, next, item.Index)
		assert.Equal(t, textVector(texts[item.Index]), item.Vector)
		next++
	}
	assert.Equal(t, len(texts), next)
}

func TestEmbedStreamEmitsAllIndices(t *testing.T) {
	fake := &fakeEmbedder{jitter: true}
	d := NewDispatcher(fake, 3, 4, nil)
	texts := makeTexts(17)

	seen := make(map[int][]float32)
	for item := range d.EmbedStream(context.Background(), texts) {
		require.NoError(t, item.Err)
		seen[item.Index] = item.Vector
	}

	require.Len(t, seen, len(texts))
	for i, text := range texts {
		assert.Equal(t, textVector(text), seen[i], "index %d", i)
	}
}

func TestEmbedStreamTerminalError(t *testing.T) {
	fake := &fakeEmbedder{failOnCall: 2, jitter: true}
	d := NewDispatcher(fake, 3, 2, nil)

	var terminal error
	itemsAfterError := 0
	for item := range d.EmbedStream(context.Background(), makeTexts(12)) {
		if terminal != nil {
			itemsAfterError++
			continue
		}
		if item.Err != nil {
			terminal = item.Err
			assert.Equal(t, -1, item.Index)
		}
	}

	require.ErrorIs(t, terminal, errProviderDown)
	assert.Zero(t, itemsAfterError, "no items may follow the terminal error")
}

func TestEmbedStreamEmptyInput(t *testing.T) {
	fake := &fakeEmbedder{}
	d := NewDispatcher(fake, 4, 2, nil)

	count := 0
	for range d.EmbedStream(context.Background(), nil) {
		count++
	}
	assert.Zero(t, count)
	assert.Zero(t, fake.callCount())
}

func TestEmbedAllCancelledContext(t *testing.T) {
	fake := &fakeEmbedder{jitter: true}
	d := NewDispatcher(fake, 2, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.EmbedAll(ctx, makeTexts(10))
	require.Error(t, err)
}
