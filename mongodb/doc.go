// Package mongodb implements the cache collaborator contracts on the
// official MongoDB driver: collection resolution, entry lookup and upsert,
// and execution of aggregate and mapReduce operations.
//
// The package wraps an existing *mongo.Database; connecting, pooling, and
// timeout policy remain the caller's concern.
package mongodb
