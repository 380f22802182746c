// Package memorydb implements the cache collaborator contracts on an
// in-process LRU store. It exists for tests and for embedding the caching
// layer without a database.
package memorydb
