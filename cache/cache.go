package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// KeyField is the document field the fingerprint is stored under, and the
// only filter field cache lookups use.
const KeyField = "queryHash"

// Sentinel errors for cached query operations.
var (
	ErrNilResolver  = errors.New("cache: collection resolver is nil")
	ErrNilExecutor  = errors.New("cache: query executor is nil")
	ErrBadOptions   = errors.New("cache: invalid cache options")
	ErrLookup       = errors.New("cache: cache lookup failed")
	ErrExecution    = errors.New("cache: query execution failed")
	ErrWriteThrough = errors.New("cache: cache write-through failed")
)

// Entry is the persisted cache record. CachedResult holds either the raw
// query result (inline mode) or the name of the collection holding it
// (non-inline map/reduce).
type Entry struct {
	QueryHash    string    `bson:"queryHash" json:"queryHash"`
	CachedAt     time.Time `bson:"cachedAt" json:"cachedAt"`
	CachedResult any       `bson:"cachedResult" json:"cachedResult"`
}

// Collection is a handle to a named collection used as a key-value store
// for cache entries.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - FindOne returns (nil, nil) on miss, never an error for a missing entry.
//   - Upsert must be atomic per key: concurrent writers for the same filter
//     leave exactly one entry (last writer wins).
type Collection interface {
	// Name returns the collection name.
	Name() string

	// FindOne retrieves the entry matching filter, or (nil, nil) on miss.
	FindOne(ctx context.Context, filter map[string]any) (*Entry, error)

	// Upsert inserts or replaces the entry matching filter.
	Upsert(ctx context.Context, filter map[string]any, entry *Entry) error
}

// CollectionResolver resolves a named collection within the database.
//
// Contract:
//   - Synchronous and infallible: a handle is returned even if the underlying
//     collection does not yet exist.
//   - No validation that the name is distinct from live data collections;
//     avoiding collisions is the caller's responsibility.
type CollectionResolver interface {
	ResolveCollection(name string) Collection
}

// Executor runs the real, uncached query operations.
//
// Contract:
//   - Both methods are blocking and honor ctx cancellation.
//   - ExecuteAggregate must return a materialized result value, not a cursor.
//   - ExecuteMapReduce returns the raw result data for inline output, or a
//     Collection handle for the named output collection otherwise.
type Executor interface {
	ExecuteAggregate(ctx context.Context, args ...any) (any, error)
	ExecuteMapReduce(ctx context.Context, args ...any) (any, error)
}

// Cacher caches the results of aggregate and map/reduce queries in a
// collection of the same database, keyed by a deterministic fingerprint of
// the query arguments.
//
// A Cacher holds no state of its own beyond its collaborators and is safe
// for concurrent use. Two concurrent invocations that both miss on the same
// fingerprint will both execute and both write through; the upsert's per-key
// atomicity makes that a benign last-writer-wins race.
type Cacher struct {
	resolver CollectionResolver
	exec     Executor
	fp       Fingerprinter
	metrics  *Metrics
	now      func() time.Time
}

// New creates a Cacher over the given resolver and executor.
// If fp is nil, an MD5 fingerprinter is used. metrics may be nil.
func New(resolver CollectionResolver, exec Executor, fp Fingerprinter, metrics *Metrics) (*Cacher, error) {
	if resolver == nil {
		return nil, ErrNilResolver
	}
	if exec == nil {
		return nil, ErrNilExecutor
	}
	if fp == nil {
		fp = NewMD5Fingerprinter()
	}
	return &Cacher{
		resolver: resolver,
		exec:     exec,
		fp:       fp,
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// prepare runs the steps common to both operations: options normalization,
// fingerprinting, and cache collection resolution.
func (c *Cacher) prepare(cacheOpts any, args []any) (Options, string, Collection, error) {
	opts, err := normalizeOptions(cacheOpts)
	if err != nil {
		return Options{}, "", nil, err
	}
	hash, err := c.fp.Fingerprint(args)
	if err != nil {
		return Options{}, "", nil, err
	}
	return opts, hash, c.resolver.ResolveCollection(opts.collection()), nil
}

// lookup reads the entry for hash. A missing entry is (nil, nil).
func (c *Cacher) lookup(ctx context.Context, store Collection, hash string) (*Entry, error) {
	entry, err := store.FindOne(ctx, map[string]any{KeyField: hash})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	return entry, nil
}

// writeThrough upserts the freshly computed value under hash.
func (c *Cacher) writeThrough(ctx context.Context, store Collection, hash string, value any) error {
	entry := &Entry{
		QueryHash:    hash,
		CachedAt:     c.now().UTC(),
		CachedResult: value,
	}
	if err := store.Upsert(ctx, map[string]any{KeyField: hash}, entry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteThrough, err)
	}
	return nil
}
