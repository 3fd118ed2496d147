package wspool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunPool starts every task concurrently and waits for all of them to
// settle. It returns the first error by completion order, or nil when all
// tasks succeed. A failing task does not cancel its siblings; each keeps
// running until it returns on its own.
func RunPool(ctx context.Context, tasks ...Task) error {
	var g errgroup.Group

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			return task(ctx)
		})
	}

	return g.Wait()
}
