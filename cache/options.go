package cache

import "fmt"

// DefaultCollection is the cache collection used when none is configured.
const DefaultCollection = "queryCache"

// Options configures a single cached invocation.
type Options struct {
	// Collection is the name of the collection the cache entries live in.
	// Empty means DefaultCollection.
	Collection string

	// ForceUpdate re-executes the query and overwrites any existing entry,
	// even on a cache hit.
	ForceUpdate bool
}

// collection returns the effective cache collection name.
func (o Options) collection() string {
	if o.Collection == "" {
		return DefaultCollection
	}
	return o.Collection
}

// normalizeOptions builds Options from the forms callers may pass:
// nil (defaults), a bare string (shorthand for Options{Collection: s}),
// an Options value, or a pointer to one. Anything else is ErrBadOptions.
func normalizeOptions(v any) (Options, error) {
	switch o := v.(type) {
	case nil:
		return Options{}, nil
	case string:
		return Options{Collection: o}, nil
	case Options:
		return o, nil
	case *Options:
		if o == nil {
			return Options{}, nil
		}
		return *o, nil
	default:
		return Options{}, fmt.Errorf("%w: %T", ErrBadOptions, v)
	}
}
