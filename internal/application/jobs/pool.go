package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Pool runs several workers sharing one configuration.
type Pool struct {
	Workers []*Worker
}

// NewPool clones template n times with distinct worker IDs.
func NewPool(n int, template Worker) *Pool {
	if n < 1 {
		n = 1
	}
	prefix := uuid.NewString()[:8]
	p := &Pool{Workers: make([]*Worker, 0, n)}
	for i := 0; i < n; i++ {
		w := template
		w.ID = fmt.Sprintf("%s-%d", prefix, i+1)
		p.Workers = append(p.Workers, &w)
	}
	return p
}

// Run blocks until ctx is cancelled and every worker has returned.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range p.Workers {
		g.Go(func() error { return w.Run(ctx) })
	}
	return g.Wait()
}
