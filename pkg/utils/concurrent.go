package utils

import (
	"context"
	"sync"
)

// DefaultConcurrency is used when a pool is created with a non-positive size.
const DefaultConcurrency = 4

// Worker processes one item.
type Worker[T any, R any] func(ctx context.Context, index int, item T) (R, error)

// WorkerPool runs a Worker over a slice with bounded concurrency.
//
// Results and errors are returned in input order. Items not started before
// ctx is cancelled get ctx.Err(). Panics in workers are recovered into
// *PanicError for that item only.
//
// Example:
//
//	pool := NewWorkerPool(4, func(ctx context.Context, _ int, chunk types.Chunk) (int, error) {
//	    return len(chunk.Text), nil
//	})
//	lengths, errs := pool.ProcessItems(ctx, chunks)
type WorkerPool[T any, R any] struct {
	numWorkers int
	worker     Worker[T, R]
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool[T any, R any](numWorkers int, worker Worker[T, R]) *WorkerPool[T, R] {
	if numWorkers <= 0 {
		numWorkers = DefaultConcurrency
	}
	return &WorkerPool[T, R]{numWorkers: numWorkers, worker: worker}
}

// ProcessItems processes items and blocks until every worker has returned.
func (wp *WorkerPool[T, R]) ProcessItems(ctx context.Context, items []T) ([]R, []error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))
	if len(items) == 0 {
		return results, errs
	}

	indexes := make(chan int, len(items))
	for i := range items {
		indexes <- i
	}
	close(indexes)

	workers := min(wp.numWorkers, len(items))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				if err := ctx.Err(); err != nil {
					errs[i] = err
					continue
				}
				func() {
					defer RecoverWithCallback(func(err error) { errs[i] = err })
					results[i], errs[i] = wp.worker(ctx, i, items[i])
				}()
			}
		}()
	}

	wg.Wait()
	return results, errs
}

// Batch splits items into consecutive slices of at most batchSize.
func Batch[T any](items []T, batchSize int) [][]T {
	if batchSize <= 0 {
		batchSize = 10
	}

	var batches [][]T
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		batches = append(batches, items[i:end])
	}
	return batches
}
