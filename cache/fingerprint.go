package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Code is the source text of a map or reduce function body. Representing
// the function as data makes its identity explicit: two invocations hash
// alike exactly when their source text is identical.
type Code string

// Fingerprinter derives a fixed-length cache key from the ordered query
// argument tuple.
//
// Contract:
// - Determinism: the same tuple must always produce the same fingerprint.
// - Concurrency: implementations must be safe for concurrent use.
type Fingerprinter interface {
	Fingerprint(args []any) (string, error)
}

// MD5Fingerprinter hashes the JSON serialization of the argument tuple.
//
// The caching this key feeds is advisory, not authoritative, so MD5's
// collision resistance is sufficient. Known limitation: two structurally
// different values whose serializations coincide map to the same key; this
// is tolerated, not reconciled.
type MD5Fingerprinter struct{}

// NewMD5Fingerprinter creates the default fingerprinter.
func NewMD5Fingerprinter() *MD5Fingerprinter {
	return &MD5Fingerprinter{}
}

// Fingerprint serializes args in order, substituting Code elements with
// their source text, and returns the hex MD5 digest (32 characters).
//
// Argument order is fixed by the call site, so no key reordering is needed
// at the top level; nested map keys are sorted by the JSON encoder.
func (f *MD5Fingerprinter) Fingerprint(args []any) (string, error) {
	norm := make([]any, len(args))
	for i, a := range args {
		if code, ok := a.(Code); ok {
			norm[i] = string(code)
			continue
		}
		norm[i] = a
	}

	payload, err := json.Marshal(norm)
	if err != nil {
		return "", fmt.Errorf("cache: failed to serialize query arguments: %w", err)
	}

	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Ensure MD5Fingerprinter implements Fingerprinter
var _ Fingerprinter = (*MD5Fingerprinter)(nil)
