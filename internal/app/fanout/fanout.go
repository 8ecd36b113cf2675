// Package fanout runs a function across a slice of items on a fixed pool of
// worker goroutines and returns the results in input order. Readiness
// probes use it to run dependency checks side by side.
package fanout

import (
	"context"
	"sync"

	"github.com/jsamuelsen11/cascade/internal/app/compose"
)

// Result holds the outcome of processing a single item.
// Either Value is populated (on success) or Err is non-nil (on failure).
type Result[R any] struct {
	Value R
	Err   error
}

// Run executes fn for each item using at most maxWorkers goroutines.
// maxWorkers <= 0 or above len(items) runs every item at once.
//
// Items not yet started when ctx is canceled record ctx.Err() without
// calling fn. A panic in fn is recorded as a *compose.PanicError for that
// item. Run blocks until every item has a result; an empty items slice
// yields an empty non-nil slice.
func Run[T, R any](ctx context.Context, maxWorkers int, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}
	if maxWorkers <= 0 || maxWorkers > len(items) {
		maxWorkers = len(items)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range maxWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := ctx.Err(); err != nil {
					results[idx] = Result[R]{Err: err}
					continue
				}
				results[idx] = call(ctx, fn, items[idx])
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func call[T, R any](ctx context.Context, fn func(context.Context, T) (R, error), item T) (res Result[R]) {
	defer func() {
		if v := recover(); v != nil {
			res = Result[R]{Err: compose.Recovered(v)}
		}
	}()
	val, err := fn(ctx, item)
	return Result[R]{Value: val, Err: err}
}
