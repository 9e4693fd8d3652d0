package track

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
)

// chunkResult is the output of one contiguous run of epochs.
type chunkResult struct {
	index   int
	records []Record
	err     error
}

// collectParallel evaluates the window in fixed-size chunks on a bounded pool
// of goroutines and reassembles them in epoch order. After a failure, chunks
// later than the failing one are abandoned; earlier chunks always complete so
// the returned prefix is contiguous.
func (d *Driver) collectParallel(ctx context.Context, p *plan) ([]Record, error) {
	size := d.cfg.ChunkSize
	numChunks := (p.n + size - 1) / size
	workers := min(d.cfg.Workers, numChunks)

	var firstFailed atomic.Int64
	firstFailed.Store(math.MaxInt64)

	jobs := make(chan int, numChunks)
	for c := 0; c < numChunks; c++ {
		jobs <- c
	}
	close(jobs)

	results := make(chan chunkResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if int64(c) > firstFailed.Load() {
					continue
				}
				res := p.runChunk(ctx, c, size, &firstFailed)
				if res.err != nil {
					lowerTo(&firstFailed, int64(c))
				}
				results <- res
			}
		}()
	}

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	chunks := make([]*chunkResult, numChunks)
	for res := range results {
		chunks[res.index] = &res
	}

	records := make([]Record, 0, min(p.n, maxPrealloc))
	for _, res := range chunks {
		if res == nil {
			// Skipped: an earlier chunk failed and has been returned already.
			break
		}
		records = append(records, res.records...)
		if res.err != nil {
			d.logger.Debug("chunk failed",
				"chunk", res.index,
				"completed", len(res.records),
				"error", res.err,
			)
			return records, res.err
		}
	}
	return records, nil
}

// runChunk evaluates chunk c. It stops early when ctx is done or an earlier
// chunk has already failed.
func (p *plan) runChunk(ctx context.Context, c, size int, firstFailed *atomic.Int64) chunkResult {
	lo := c * size
	hi := min(lo+size, p.n)
	res := chunkResult{index: c, records: make([]Record, 0, hi-lo)}

	for k := lo; k < hi; k++ {
		if err := ctx.Err(); err != nil {
			res.err = err
			return res
		}
		if firstFailed.Load() < int64(c) {
			return res
		}
		rec, err := p.record(p.epoch(k))
		if err != nil {
			res.err = err
			return res
		}
		res.records = append(res.records, rec)
	}
	return res
}

// lowerTo atomically replaces v with x if x is smaller.
func lowerTo(v *atomic.Int64, x int64) {
	for {
		cur := v.Load()
		if x >= cur || v.CompareAndSwap(cur, x) {
			return
		}
	}
}
