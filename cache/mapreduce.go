package cache

import (
	"context"
	"fmt"
	"time"
)

// OutputSpec controls where a map/reduce job writes its result.
type OutputSpec struct {
	// Inline returns the result data directly instead of writing it to an
	// output collection.
	Inline bool `bson:"inline,omitempty" json:"inline,omitempty"`

	// Collection names the output collection for non-inline jobs. Empty
	// lets the executor pick a name.
	Collection string `bson:"collection,omitempty" json:"collection,omitempty"`
}

// MapReduceOptions is the options argument of a map/reduce invocation.
type MapReduceOptions struct {
	Out   OutputSpec     `bson:"out" json:"out"`
	Query map[string]any `bson:"query,omitempty" json:"query,omitempty"`
	Sort  map[string]any `bson:"sort,omitempty" json:"sort,omitempty"`
	Scope map[string]any `bson:"scope,omitempty" json:"scope,omitempty"`
	Limit int64          `bson:"limit,omitempty" json:"limit,omitempty"`
}

// MapReduce runs a map/reduce job through the cache.
//
// args is the ordered argument tuple for the underlying job: map body,
// reduce body (both as Code), then optionally a MapReduceOptions value (or
// an equivalent untyped document).
//
// The output mode decides what gets cached. Inline output caches the raw
// result data; a hit returns it as-is. Non-inline output caches only the
// output collection's name; a hit re-resolves that name to a live handle,
// so callers always receive a usable Collection, never a bare string.
func (c *Cacher) MapReduce(ctx context.Context, cacheOpts any, args ...any) (any, error) {
	start := time.Now()

	opts, hash, store, err := c.prepare(cacheOpts, args)
	if err != nil {
		return nil, err
	}
	inline := inlineOutput(args)

	entry, err := c.lookup(ctx, store, hash)
	if err != nil {
		c.metrics.recordError(ctx, opMapReduce)
		return nil, err
	}
	if entry != nil && !opts.ForceUpdate {
		if inline {
			c.metrics.recordHit(ctx, opMapReduce, time.Since(start))
			return entry.CachedResult, nil
		}
		name, ok := entry.CachedResult.(string)
		if !ok {
			c.metrics.recordError(ctx, opMapReduce)
			return nil, fmt.Errorf("%w: cached result is %T, want output collection name", ErrLookup, entry.CachedResult)
		}
		c.metrics.recordHit(ctx, opMapReduce, time.Since(start))
		return c.resolver.ResolveCollection(name), nil
	}

	result, err := c.exec.ExecuteMapReduce(ctx, args...)
	if err != nil {
		c.metrics.recordError(ctx, opMapReduce)
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}

	if inline {
		if err := c.writeThrough(ctx, store, hash, result); err != nil {
			c.metrics.recordError(ctx, opMapReduce)
			return nil, err
		}
		c.metrics.recordMiss(ctx, opMapReduce, time.Since(start))
		return result, nil
	}

	out, ok := result.(Collection)
	if !ok {
		c.metrics.recordError(ctx, opMapReduce)
		return nil, fmt.Errorf("%w: executor returned %T, want Collection for non-inline output", ErrExecution, result)
	}
	if err := c.writeThrough(ctx, store, hash, out.Name()); err != nil {
		c.metrics.recordError(ctx, opMapReduce)
		return nil, err
	}

	c.metrics.recordMiss(ctx, opMapReduce, time.Since(start))
	return out, nil
}

// inlineOutput reports whether the invocation requests inline output.
// The options value, when present, is the third positional argument.
func inlineOutput(args []any) bool {
	if len(args) < 3 {
		return false
	}
	switch o := args[2].(type) {
	case MapReduceOptions:
		return o.Out.Inline
	case *MapReduceOptions:
		return o != nil && o.Out.Inline
	case map[string]any:
		out, ok := o["out"].(map[string]any)
		if !ok {
			return false
		}
		return truthy(out["inline"])
	}
	return false
}

// truthy mirrors the loose inline flag convention of document databases,
// where {out: {inline: 1}} and {out: {inline: true}} are both valid.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float32:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}
