package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jonwraymond/querycache/cache"
)

// Sentinel errors for executor argument validation.
var (
	ErrNoPipeline       = errors.New("mongodb: aggregate requires a pipeline argument")
	ErrBadMapReduceArgs = errors.New("mongodb: invalid map/reduce arguments")
)

// Executor runs aggregate and map/reduce operations against one source
// collection. It satisfies cache.Executor.
type Executor struct {
	db     *Database
	source string
}

// NewExecutor creates an executor over the named source collection.
func NewExecutor(db *Database, source string) *Executor {
	return &Executor{db: db, source: source}
}

// ExecuteAggregate runs the pipeline in args[0] and drains the cursor into
// a materialized []bson.M. Any *options.AggregateOptions among the
// remaining arguments are forwarded to the driver.
func (e *Executor) ExecuteAggregate(ctx context.Context, args ...any) (any, error) {
	if len(args) == 0 {
		return nil, ErrNoPipeline
	}
	pipeline := args[0]

	var aggOpts []*options.AggregateOptions
	for _, a := range args[1:] {
		if o, ok := a.(*options.AggregateOptions); ok {
			aggOpts = append(aggOpts, o)
		}
	}

	cur, err := e.db.db.Collection(e.source).Aggregate(ctx, pipeline, aggOpts...)
	if err != nil {
		return nil, fmt.Errorf("mongodb: aggregate on %q failed: %w", e.source, err)
	}

	var out []bson.M
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongodb: failed to drain aggregate cursor: %w", err)
	}
	return out, nil
}

// ExecuteMapReduce runs a mapReduce command built from args: map body,
// reduce body (both cache.Code), and optionally a cache.MapReduceOptions.
// Inline output returns the result documents; otherwise the output
// collection handle is returned.
func (e *Executor) ExecuteMapReduce(ctx context.Context, args ...any) (any, error) {
	mapFn, reduceFn, opts, err := mapReduceArgs(args)
	if err != nil {
		return nil, err
	}

	cmd, outName := buildMapReduceCommand(e.source, mapFn, reduceFn, opts)
	res := e.db.db.RunCommand(ctx, cmd)

	if opts.Out.Inline {
		var doc struct {
			Results []bson.M `bson:"results"`
		}
		if err := res.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb: mapReduce on %q failed: %w", e.source, err)
		}
		return doc.Results, nil
	}

	var doc struct {
		Result any `bson:"result"`
	}
	if err := res.Decode(&doc); err != nil {
		return nil, fmt.Errorf("mongodb: mapReduce on %q failed: %w", e.source, err)
	}
	// Older servers report the output collection as a bare name; sharded
	// deployments report a {db, collection} document. Prefer the server's
	// answer when it is a name, else keep the name we asked for.
	if name, ok := doc.Result.(string); ok && name != "" {
		outName = name
	}
	return e.db.ResolveCollection(outName), nil
}

// mapReduceArgs validates and unpacks the opaque argument tuple.
func mapReduceArgs(args []any) (cache.Code, cache.Code, cache.MapReduceOptions, error) {
	var opts cache.MapReduceOptions
	if len(args) < 2 {
		return "", "", opts, fmt.Errorf("%w: want map and reduce bodies, got %d arguments", ErrBadMapReduceArgs, len(args))
	}
	mapFn, ok := args[0].(cache.Code)
	if !ok {
		return "", "", opts, fmt.Errorf("%w: map body is %T, want cache.Code", ErrBadMapReduceArgs, args[0])
	}
	reduceFn, ok := args[1].(cache.Code)
	if !ok {
		return "", "", opts, fmt.Errorf("%w: reduce body is %T, want cache.Code", ErrBadMapReduceArgs, args[1])
	}
	if len(args) >= 3 && args[2] != nil {
		switch o := args[2].(type) {
		case cache.MapReduceOptions:
			opts = o
		case *cache.MapReduceOptions:
			if o != nil {
				opts = *o
			}
		default:
			return "", "", opts, fmt.Errorf("%w: options are %T, want cache.MapReduceOptions", ErrBadMapReduceArgs, args[2])
		}
	}
	return mapFn, reduceFn, opts, nil
}

// buildMapReduceCommand assembles the mapReduce command document and the
// output collection name (generated when non-inline output names none).
func buildMapReduceCommand(source string, mapFn, reduceFn cache.Code, opts cache.MapReduceOptions) (bson.D, string) {
	cmd := bson.D{
		{Key: "mapReduce", Value: source},
		{Key: "map", Value: primitive.JavaScript(mapFn)},
		{Key: "reduce", Value: primitive.JavaScript(reduceFn)},
	}

	outName := opts.Out.Collection
	if opts.Out.Inline {
		cmd = append(cmd, bson.E{Key: "out", Value: bson.D{{Key: "inline", Value: 1}}})
	} else {
		if outName == "" {
			outName = "mapreduce_" + uuid.NewString()[:8]
		}
		cmd = append(cmd, bson.E{Key: "out", Value: bson.D{{Key: "replace", Value: outName}}})
	}

	if opts.Query != nil {
		cmd = append(cmd, bson.E{Key: "query", Value: bson.M(opts.Query)})
	}
	if opts.Sort != nil {
		cmd = append(cmd, bson.E{Key: "sort", Value: bson.M(opts.Sort)})
	}
	if opts.Scope != nil {
		cmd = append(cmd, bson.E{Key: "scope", Value: bson.M(opts.Scope)})
	}
	if opts.Limit > 0 {
		cmd = append(cmd, bson.E{Key: "limit", Value: opts.Limit})
	}
	return cmd, outName
}

// Ensure Executor satisfies the collaborator contract
var _ cache.Executor = (*Executor)(nil)
