/*
Package parallel runs data-parallel loops over index ranges on a bounded
number of goroutines.
*/
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Threads resolves a configured worker count, 0 meaning GOMAXPROCS.
func Threads(n int) int {
	if n < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

/*
For calls fn for every index in [0, n) using at most nThread goroutines and
returns the first error. Iterations must be independent of one another.
*/
func For(ctx context.Context, nThread, n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	nThread = Threads(nThread)
	if nThread == 1 || n == 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return ctx.Err()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(nThread)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fn(i)
		})
	}
	return g.Wait()
}

/*
Blocks splits [0, n) into consecutive blocks of at most size indices and
calls fn(lo, hi) for each block in parallel.
*/
func Blocks(ctx context.Context, nThread, n, size int, fn func(lo, hi int) error) error {
	if size < 1 {
		size = 1
	}
	nBlock := (n + size - 1) / size
	return For(ctx, nThread, nBlock, func(b int) error {
		hi := (b + 1) * size
		if hi > n {
			hi = n
		}
		return fn(b*size, hi)
	})
}
