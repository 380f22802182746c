// Package cache provides result caching for aggregation and map/reduce
// queries against a document database.
//
// Results are stored in a collection of the same database, keyed by a
// deterministic fingerprint of the query arguments. A hit returns the
// stored value without touching the executor; a miss executes the real
// query and writes the result through. There is no expiry and no size
// bound at this layer: staleness and invalidation (beyond ForceUpdate)
// are the caller's responsibility.
package cache
