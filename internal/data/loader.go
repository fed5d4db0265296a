package data

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/digitnet/internal/tensor"
)

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize  int
	NumWorkers int
	Shuffle    bool
	Seed       uint64
}

// Loader streams batches of a dataset.
//
// Batches are assembled by NumWorkers goroutines, at most 2*NumWorkers
// ahead of the consumer, and delivered strictly in order. With Shuffle set
// the order is a permutation seeded by Seed+epoch; otherwise items are
// visited sequentially. The last batch may be smaller than BatchSize.
type Loader[B tensor.Backend] struct {
	ds      Dataset
	batcher *Batcher[B]
	cfg     LoaderConfig
}

// NewLoader creates a loader over ds.
func NewLoader[B tensor.Backend](ds Dataset, batcher *Batcher[B], cfg LoaderConfig) (*Loader[B], error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.NumWorkers <= 0 {
		return nil, fmt.Errorf("num workers must be positive, got %d", cfg.NumWorkers)
	}
	return &Loader[B]{ds: ds, batcher: batcher, cfg: cfg}, nil
}

// NumBatches returns the number of batches per epoch.
func (l *Loader[B]) NumBatches() int {
	return (l.ds.Len() + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Order returns the item visiting order for an epoch.
func (l *Loader[B]) Order(epoch int) []int {
	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}
	if l.cfg.Shuffle {
		rng := rand.New(rand.NewPCG(l.cfg.Seed+uint64(epoch), 0)) //nolint:gosec // epoch is non-negative
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}

type loadResult[B tensor.Backend] struct {
	batch *Batch[B]
	err   error
}

// ForEach calls fn for every batch of the given epoch, in order.
//
// It stops at the first error from fn, from batch assembly or from ctx, and
// returns it. All workers have exited when ForEach returns.
func (l *Loader[B]) ForEach(ctx context.Context, epoch int, fn func(index int, batch *Batch[B]) error) error {
	order := l.Order(epoch)
	n := l.NumBatches()
	if n == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Each batch has its own single-use slot so the consumer can read them
	// in order regardless of which worker finishes first.
	slots := make([]chan loadResult[B], n)
	for i := range slots {
		slots[i] = make(chan loadResult[B], 1)
	}
	tokens := make(chan struct{}, 2*l.cfg.NumWorkers)
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case tokens <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < l.cfg.NumWorkers; w++ {
		g.Go(func() error {
			for i := range jobs {
				begin := i * l.cfg.BatchSize
				end := min(begin+l.cfg.BatchSize, len(order))
				batch, err := l.assemble(order[begin:end])
				slots[i] <- loadResult[B]{batch: batch, err: err}
			}
			return nil
		})
	}

	consumeErr := l.consume(gctx, slots, tokens, fn)
	cancel()
	waitErr := g.Wait()

	switch {
	case consumeErr != nil:
		return consumeErr
	case waitErr != nil && !errors.Is(waitErr, context.Canceled):
		return waitErr
	}
	return nil
}

func (l *Loader[B]) consume(ctx context.Context, slots []chan loadResult[B], tokens <-chan struct{}, fn func(int, *Batch[B]) error) error {
	for i, slot := range slots {
		var r loadResult[B]
		select {
		case r = <-slot:
		case <-ctx.Done():
			return ctx.Err()
		}
		<-tokens
		if r.err != nil {
			return fmt.Errorf("batch %d: %w", i, r.err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(i, r.batch); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader[B]) assemble(indices []int) (*Batch[B], error) {
	items := make([]Item, len(indices))
	for k, idx := range indices {
		item, err := l.ds.Get(idx)
		if err != nil {
			return nil, err
		}
		items[k] = item
	}
	return l.batcher.Batch(items)
}
