package embedding

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"divrag/internal/port"
)

const (
	defaultBatchSize   = 100
	defaultConcurrency = 4
)

// ProgressFunc receives the completed and total batch counts after
// each batch finishes. It may run on any goroutine and gates the
// scheduling of the next batch, so it must return quickly.
type ProgressFunc func(completed, total int)

// Item is one streamed embedding tagged with the index of its input
// text. A terminal item carries Err and Index -1; no further items
// follow it, and the channel is closed.
type Item struct {
	Index  int
	Vector []float32
	Err    error
}

// Dispatcher splits a text collection into provider-sized batches and
// keeps a bounded number of batch-embed calls in flight, reassembling
// the results in input order. It never retries: the first batch
// failure fails the whole call and in-flight siblings are abandoned
// at their next suspension point.
type Dispatcher struct {
	embedder    port.Embedder
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

// NewDispatcher creates a dispatcher. A non-positive batchSize falls
// back to the provider's advisory optimum; a concurrency below 1 is
// clamped to 1. A nil logger is replaced with a no-op logger.
func NewDispatcher(embedder port.Embedder, batchSize, concurrency int, logger *zap.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = embedder.OptimalBatchSize()
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		embedder:    embedder,
		batchSize:   batchSize,
		concurrency: concurrency,
		logger:      logger,
	}
}

// batch is a contiguous slice of the input, tagged with its position
// so out-of-order completions can be reassembled.
type batch struct {
	index int // position in batch order
	start int // global index of texts[0]
	texts []string
}

func (d *Dispatcher) split(texts []string) []batch {
	batches := make([]batch, 0, (len(texts)+d.batchSize-1)/d.batchSize)
	for start := 0; start < len(texts); start += d.batchSize {
		end := start + d.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{
			index: len(batches),
			start: start,
			texts: texts[start:end],
		})
	}
	return batches
}

func (d *Dispatcher) embedBatch(ctx context.Context, b batch) ([][]float32, error) {
	vectors, err := d.embedder.Embed(ctx, b.texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch %d: %w", b.index, err)
	}
	if len(vectors) != len(b.texts) {
		return nil, fmt.Errorf("embed batch %d: provider returned %d vectors for %d texts", b.index, len(vectors), len(b.texts))
	}
	return vectors, nil
}

// EmbedAll embeds texts and returns one vector per text, in input
// order. Empty input returns nil without any provider calls.
func (d *Dispatcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	return d.embedAll(ctx, texts, nil)
}

// EmbedAllWithProgress is EmbedAll with a progress callback invoked
// after each batch completes.
func (d *Dispatcher) EmbedAllWithProgress(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, error) {
	return d.embedAll(ctx, texts, progress)
}

func (d *Dispatcher) embedAll(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batches := d.split(texts)
	d.logger.Debug("dispatching embed batches",
		zap.Int("texts", len(texts)),
		zap.Int("batches", len(batches)),
		zap.Int("concurrency", d.concurrency))

	type completed struct {
		index   int
		vectors [][]float32
	}
	results := make(chan completed, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	var done atomic.Int64
	for _, b := range batches {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vectors, err := d.embedBatch(gctx, b)
			if err != nil {
				return err
			}
			select {
			case results <- completed{index: b.index, vectors: vectors}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if progress != nil {
				progress(int(done.Add(1)), len(batches))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	close(results)

	pairs := make([]completed, 0, len(batches))
	for c := range results {
		pairs = append(pairs, c)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].index < pairs[j].index })

	out := make([][]float32, 0, len(texts))
	for _, p := range pairs {
		out = append(out, p.vectors...)
	}
	return out, nil
}

// EmbedStream embeds texts with bounded concurrency and emits items
// as batches complete, in completion order. Consumers must drain the
// channel until it closes; the Index field lets them reorder.
func (d *Dispatcher) EmbedStream(ctx context.Context, texts []string) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		if len(texts) == 0 {
			return
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(d.concurrency)
		for _, b := range d.split(texts) {
			b := b
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				vectors, err := d.embedBatch(gctx, b)
				if err != nil {
					return err
				}
				for i, v := range vectors {
					select {
					case out <- Item{Index: b.start + i, Vector: v}:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			out <- Item{Index: -1, Err: err}
		}
	}()
	return out
}

// EmbedStreamOrdered embeds texts one batch at a time, no concurrency,
// and emits items in strict input order.
func (d *Dispatcher) EmbedStreamOrdered(ctx context.Context, texts []string) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		for _, b := range d.split(texts) {
			if err := ctx.Err(); err != nil {
				out <- Item{Index: -1, Err: err}
				return
			}
			vectors, err := d.embedBatch(ctx, b)
			if err != nil {
				out <- Item{Index: -1, Err: err}
				return
			}
			for i, v := range vectors {
				select {
				case out <- Item{Index: b.start + i, Vector: v}:
				case <-ctx.Done():
					out <- Item{Index: -1, Err: ctx.Err()}
					return
				}
			}
		}
	}()
	return out
}
