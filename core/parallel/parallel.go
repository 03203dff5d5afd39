// Package parallel runs index ranges across worker goroutines.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Workers resolves a requested worker count. Values <= 0 mean one worker
// per CPU core.
func Workers(requested int) int {
	if requested <= 0 {
		return runtime.NumCPU()
	}
	return requested
}

// Parallelize divides items into contiguous ranges, one per worker, and
// calls fn(start, end) for each range concurrently.
func Parallelize(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := Workers(workers)
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over [0, items) when items
// does not exceed threshold, and in parallel otherwise.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int)) {
	if items <= threshold || Workers(workers) == 1 {
		fn(0, items)
		return
	}
	Parallelize(items, workers, fn)
}

// ForEach calls fn(ctx, i) for every i in [0, items) with at most workers
// calls in flight. The first error cancels ctx for the remaining calls and
// is returned.
func ForEach(ctx context.Context, items, workers int, fn func(ctx context.Context, i int) error) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))
	for i := 0; i < items; i++ {
		if gCtx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			return fn(gCtx, i)
		})
	}
	return g.Wait()
}
