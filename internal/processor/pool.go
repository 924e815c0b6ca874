package processor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pool bounds how many independent jobs run at once.
type Pool struct {
	workers int
	logger  *logrus.Logger
}

// NewPool creates a pool of the given size. A size below one runs jobs one at a time.
func NewPool(workers int, logger *logrus.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		logger:  logger,
	}
}

func (p *Pool) Workers() int {
	return p.workers
}

// Map applies fn to every item on the pool and returns the results in input
// order. The first error cancels the remaining jobs and is returned.
func Map[T, R any](ctx context.Context, p *Pool, name string, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := fn(ctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		p.logger.WithError(err).WithField("stage", name).Error("Parallel stage failed")
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"stage":    name,
		"items":    len(items),
		"workers":  p.workers,
		"duration": time.Since(start).String(),
	}).Debug("Parallel stage complete")
	return results, nil
}
