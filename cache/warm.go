package cache

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultWarmParallelism bounds concurrent executions during Warm when the
// caller passes parallelism <= 0.
const DefaultWarmParallelism = 4

// QueryKind selects which cached operation a Query runs.
type QueryKind int

const (
	// KindAggregate runs the query through Aggregate.
	KindAggregate QueryKind = iota
	// KindMapReduce runs the query through MapReduce.
	KindMapReduce
)

// Query describes one invocation for Warm. Options takes the same forms the
// cacheOpts parameter of Aggregate and MapReduce accepts.
type Query struct {
	Kind    QueryKind
	Options any
	Args    []any
}

// Warm pre-populates the cache by running the given queries concurrently
// through the normal hit/miss path. Already-cached queries cost one lookup
// each. Execution stops at the first error, which is returned; queries
// already in flight run to completion.
func (c *Cacher) Warm(ctx context.Context, queries []Query, parallelism int) error {
	if parallelism <= 0 {
		parallelism = DefaultWarmParallelism
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for _, q := range queries {
		g.Go(func() error {
			var err error
			switch q.Kind {
			case KindMapReduce:
				_, err = c.MapReduce(ctx, q.Options, q.Args...)
			default:
				_, err = c.Aggregate(ctx, q.Options, q.Args...)
			}
			return err
		})
	}

	return g.Wait()
}
