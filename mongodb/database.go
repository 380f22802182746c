package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jonwraymond/querycache/cache"
)

// Database adapts a *mongo.Database to cache.CollectionResolver. It does
// not own the connection: client lifecycle, pooling, and timeouts stay with
// the caller.
type Database struct {
	db *mongo.Database
}

// New wraps an already connected database handle.
func New(db *mongo.Database) *Database {
	return &Database{db: db}
}

// ResolveCollection returns a handle to the named collection. The driver
// creates handles lazily, so this succeeds whether or not the collection
// exists yet.
func (d *Database) ResolveCollection(name string) cache.Collection {
	return &Collection{coll: d.db.Collection(name)}
}

// Collection adapts a *mongo.Collection to the cache key-value contract.
type Collection struct {
	coll *mongo.Collection
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.coll.Name()
}

// FindOne retrieves the entry matching filter, or (nil, nil) when no
// document matches.
func (c *Collection) FindOne(ctx context.Context, filter map[string]any) (*cache.Entry, error) {
	var entry cache.Entry
	err := c.coll.FindOne(ctx, bson.M(filter)).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: failed to find entry in %q: %w", c.coll.Name(), err)
	}
	return &entry, nil
}

// Upsert replaces the document matching filter, inserting it if absent.
// Atomic per key on the server side.
func (c *Collection) Upsert(ctx context.Context, filter map[string]any, entry *cache.Entry) error {
	_, err := c.coll.ReplaceOne(ctx, bson.M(filter), entry, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb: failed to upsert entry into %q: %w", c.coll.Name(), err)
	}
	return nil
}

// Ensure the adapter satisfies the collaborator contracts
var (
	_ cache.CollectionResolver = (*Database)(nil)
	_ cache.Collection         = (*Collection)(nil)
)
