package memorydb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jonwraymond/querycache/cache"
)

// DefaultCapacity is the per-collection entry bound used when none is given.
const DefaultCapacity = 1024

// ErrBadFilter indicates a filter this store cannot evaluate. Only exact
// lookups on the fingerprint field are supported.
var ErrBadFilter = errors.New("memorydb: unsupported filter")

// Database is an in-process implementation of cache.CollectionResolver,
// intended for tests and embedded callers. Each resolved collection is an
// independent LRU-bounded key-value store.
type Database struct {
	mu       sync.Mutex
	capacity int
	colls    map[string]*Collection
}

// New creates a Database. capacity bounds each collection's entry count;
// <= 0 means DefaultCapacity.
func New(capacity int) *Database {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Database{
		capacity: capacity,
		colls:    make(map[string]*Collection),
	}
}

// ResolveCollection returns the named collection, creating it on first use.
// Resolving the same name always yields the same handle.
func (d *Database) ResolveCollection(name string) cache.Collection {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.colls[name]; ok {
		return c
	}
	// lru.New only fails on a non-positive size, which New rules out.
	entries, _ := lru.New[string, cache.Entry](d.capacity)
	c := &Collection{name: name, entries: entries}
	d.colls[name] = c
	return c
}

// Collection is a single in-memory collection. The LRU bound is a property
// of this store, not of the caching layer above it: evicted entries simply
// surface as misses.
type Collection struct {
	name    string
	entries *lru.Cache[string, cache.Entry]
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// FindOne looks up the entry whose fingerprint matches the filter.
// Returns (nil, nil) on miss.
func (c *Collection) FindOne(_ context.Context, filter map[string]any) (*cache.Entry, error) {
	key, err := filterKey(filter)
	if err != nil {
		return nil, err
	}
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Upsert inserts or replaces the entry for the filter's fingerprint.
func (c *Collection) Upsert(_ context.Context, filter map[string]any, entry *cache.Entry) error {
	key, err := filterKey(filter)
	if err != nil {
		return err
	}
	c.entries.Add(key, *entry)
	return nil
}

// Len returns the number of live entries.
func (c *Collection) Len() int {
	return c.entries.Len()
}

// Purge drops all entries.
func (c *Collection) Purge() {
	c.entries.Purge()
}

// filterKey extracts the fingerprint from a lookup filter.
func filterKey(filter map[string]any) (string, error) {
	if len(filter) != 1 {
		return "", fmt.Errorf("%w: want exactly one field, got %d", ErrBadFilter, len(filter))
	}
	key, ok := filter[cache.KeyField].(string)
	if !ok {
		return "", fmt.Errorf("%w: want string %q field", ErrBadFilter, cache.KeyField)
	}
	return key, nil
}

// Ensure the store satisfies the collaborator contracts
var (
	_ cache.CollectionResolver = (*Database)(nil)
	_ cache.Collection         = (*Collection)(nil)
)
