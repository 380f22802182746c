package cache

import (
	"context"
	"fmt"
	"time"
)

// Aggregate runs an aggregation pipeline through the cache.
//
// cacheOpts may be nil, a collection name string, or an Options value.
// args is the ordered argument tuple for the underlying aggregate call
// (pipeline, then any driver options); it is hashed opaquely and handed to
// the executor untouched.
//
// On a hit the stored result is returned and the executor is not called.
// On a miss (or ForceUpdate) the executor runs once and its result is
// upserted under the fingerprint before being returned. A write-through
// failure is returned as the call's error even though the query succeeded:
// silently swallowing it would mask double-computation on every call.
func (c *Cacher) Aggregate(ctx context.Context, cacheOpts any, args ...any) (any, error) {
	start := time.Now()

	opts, hash, store, err := c.prepare(cacheOpts, args)
	if err != nil {
		return nil, err
	}

	entry, err := c.lookup(ctx, store, hash)
	if err != nil {
		c.metrics.recordError(ctx, opAggregate)
		return nil, err
	}
	if entry != nil && !opts.ForceUpdate {
		c.metrics.recordHit(ctx, opAggregate, time.Since(start))
		return entry.CachedResult, nil
	}

	result, err := c.exec.ExecuteAggregate(ctx, args...)
	if err != nil {
		c.metrics.recordError(ctx, opAggregate)
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	if err := c.writeThrough(ctx, store, hash, result); err != nil {
		c.metrics.recordError(ctx, opAggregate)
		return nil, err
	}

	c.metrics.recordMiss(ctx, opAggregate, time.Since(start))
	return result, nil
}
