package flowinter

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// parallelRanges splits [0,n) into at most workers contiguous ranges and runs
// fn on each. The ranges never overlap, so fn needs no locking as long as it
// only writes to the rows (or columns) it was given.
func parallelRanges(ctx context.Context, workers, n int, fn func(lo, hi int)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if n <= 0 {
		return nil
	}

	if workers <= 1 || n == 1 {
		fn(0, n)
		return nil
	}

	chunks := min(workers, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < chunks; i++ {
		lo := i * n / chunks
		hi := (i + 1) * n / chunks
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn(lo, hi)
			return nil
		})
	}

	return g.Wait()
}
