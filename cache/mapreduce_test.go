package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	mapBody    = Code("function(){emit(this.k,1)}")
	reduceBody = Code("function(k,v){return Array.sum(v)}")
	inlineOpts = MapReduceOptions{Out: OutputSpec{Inline: true}}
)

func TestMapReduce_InlineMissStoresRawResult(t *testing.T) {
	resolver := newFakeResolver()
	exec := &mockExecutor{result: []map[string]any{{"_id": "a", "value": 2.0}}}
	c := newCacher(t, resolver, exec)

	result, err := c.MapReduce(context.Background(), nil, mapBody, reduceBody, inlineOpts)
	if err != nil {
		t.Fatalf("MapReduce() error = %v", err)
	}
	if exec.mrCalls != 1 {
		t.Errorf("expected 1 execution, got %d", exec.mrCalls)
	}
	if diff := cmp.Diff(exec.result, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	store := resolver.colls[DefaultCollection]
	if store.upsertCalls != 1 {
		t.Fatalf("expected 1 upsert, got %d", store.upsertCalls)
	}
	for _, entry := range store.entries {
		if diff := cmp.Diff(exec.result, entry.CachedResult); diff != "" {
			t.Errorf("inline mode should cache the raw data (-want +got):\n%s", diff)
		}
	}
}

func TestMapReduce_InlineHitReturnsStoredData(t *testing.T) {
	resolver := newFakeResolver()
	exec := &mockExecutor{result: "live"}
	c := newCacher(t, resolver, exec)

	stored := []any{map[string]any{"_id": "a", "value": 1.0}}
	hash, err := c.fp.Fingerprint([]any{mapBody, reduceBody, inlineOpts})
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	store := resolver.ResolveCollection(DefaultCollection).(*fakeCollection)
	store.entries[hash] = &Entry{QueryHash: hash, CachedResult: stored}
	resolver.resolved = nil

	result, err := c.MapReduce(context.Background(), nil, mapBody, reduceBody, inlineOpts)
	if err != nil {
		t.Fatalf("MapReduce() error = %v", err)
	}
	if exec.mrCalls != 0 {
		t.Errorf("executor ran %d times on an inline hit", exec.mrCalls)
	}
	if diff := cmp.Diff(stored, result); diff != "" {
		t.Errorf("inline hit should return the stored data as-is (-want +got):\n%s", diff)
	}
	// Only the cache collection itself is resolved, never an output handle.
	if diff := cmp.Diff([]string{DefaultCollection}, resolver.resolved); diff != "" {
		t.Errorf("resolved collections mismatch (-want +got):\n%s", diff)
	}
}

func TestMapReduce_NonInlineMissStoresCollectionName(t *testing.T) {
	resolver := newFakeResolver()
	out := newFakeCollection("mr_out")
	exec := &mockExecutor{result: Collection(out)}
	c := newCacher(t, resolver, exec)

	result, err := c.MapReduce(context.Background(), nil, mapBody, reduceBody)
	if err != nil {
		t.Fatalf("MapReduce() error = %v", err)
	}
	if result != Collection(out) {
		t.Errorf("miss should return the executor's live handle, got %v", result)
	}

	store := resolver.colls[DefaultCollection]
	if store.upsertCalls != 1 {
		t.Fatalf("expected 1 upsert, got %d", store.upsertCalls)
	}
	for _, entry := range store.entries {
		name, ok := entry.CachedResult.(string)
		if !ok {
			t.Fatalf("cached result is %T, want the name string", entry.CachedResult)
		}
		if name != "mr_out" {
			t.Errorf("cached name = %q, want %q", name, "mr_out")
		}
	}
}

func TestMapReduce_NonInlineHitResolvesHandle(t *testing.T) {
	resolver := newFakeResolver()
	exec := &mockExecutor{}
	c := newCacher(t, resolver, exec)

	hash, err := c.fp.Fingerprint([]any{mapBody, reduceBody})
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	store := resolver.ResolveCollection(DefaultCollection).(*fakeCollection)
	store.entries[hash] = &Entry{QueryHash: hash, CachedResult: "mr_out"}

	result, err := c.MapReduce(context.Background(), nil, mapBody, reduceBody)
	if err != nil {
		t.Fatalf("MapReduce() error = %v", err)
	}
	if exec.mrCalls != 0 {
		t.Errorf("executor ran %d times on a hit", exec.mrCalls)
	}

	handle, ok := result.(Collection)
	if !ok {
		t.Fatalf("hit should return a Collection handle, got %T", result)
	}
	if handle.Name() != "mr_out" {
		t.Errorf("handle name = %q, want %q", handle.Name(), "mr_out")
	}
	if _, ok := resolver.colls["mr_out"]; !ok {
		t.Error("handle should come from the resolver, by the stored name")
	}
}

func TestMapReduce_NonInlineHitCorruptEntry(t *testing.T) {
	resolver := newFakeResolver()
	exec := &mockExecutor{}
	c := newCacher(t, resolver, exec)

	hash, err := c.fp.Fingerprint([]any{mapBody, reduceBody})
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	store := resolver.ResolveCollection(DefaultCollection).(*fakeCollection)
	store.entries[hash] = &Entry{QueryHash: hash, CachedResult: 99}

	_, err = c.MapReduce(context.Background(), nil, mapBody, reduceBody)
	if !errors.Is(err, ErrLookup) {
		t.Errorf("MapReduce() error = %v, want ErrLookup for a non-string cached result", err)
	}
}

func TestMapReduce_NonInlineExecutorMustReturnCollection(t *testing.T) {
	resolver := newFakeResolver()
	exec := &mockExecutor{result: "just a string"}
	c := newCacher(t, resolver, exec)

	_, err := c.MapReduce(context.Background(), nil, mapBody, reduceBody)
	if !errors.Is(err, ErrExecution) {
		t.Errorf("MapReduce() error = %v, want ErrExecution", err)
	}
	store := resolver.colls[DefaultCollection]
	if store.upsertCalls != 0 {
		t.Errorf("no write-through for an unusable executor result, got %d upserts", store.upsertCalls)
	}
}

func TestMapReduce_ForceUpdateOverwrites(t *testing.T) {
	resolver := newFakeResolver()
	exec := &mockExecutor{result: []map[string]any{{"_id": "a", "value": 9.0}}}
	c := newCacher(t, resolver, exec)

	hash, err := c.fp.Fingerprint([]any{mapBody, reduceBody, inlineOpts})
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	store := resolver.ResolveCollection(DefaultCollection).(*fakeCollection)
	store.entries[hash] = &Entry{QueryHash: hash, CachedResult: "stale"}

	_, err = c.MapReduce(context.Background(), Options{ForceUpdate: true}, mapBody, reduceBody, inlineOpts)
	if err != nil {
		t.Fatalf("MapReduce() error = %v", err)
	}
	if exec.mrCalls != 1 {
		t.Errorf("expected 1 execution with ForceUpdate, got %d", exec.mrCalls)
	}
	if diff := cmp.Diff(exec.result, store.entries[hash].CachedResult); diff != "" {
		t.Errorf("entry should be overwritten (-want +got):\n%s", diff)
	}
}

func TestInlineOutput(t *testing.T) {
	tests := []struct {
		name string
		args []any
		want bool
	}{
		{"no options", []any{mapBody, reduceBody}, false},
		{"typed inline", []any{mapBody, reduceBody, inlineOpts}, true},
		{"typed non-inline", []any{mapBody, reduceBody, MapReduceOptions{}}, false},
		{"pointer inline", []any{mapBody, reduceBody, &inlineOpts}, true},
		{"nil pointer", []any{mapBody, reduceBody, (*MapReduceOptions)(nil)}, false},
		{"untyped inline bool", []any{mapBody, reduceBody, map[string]any{"out": map[string]any{"inline": true}}}, true},
		{"untyped inline numeric", []any{mapBody, reduceBody, map[string]any{"out": map[string]any{"inline": 1}}}, true},
		{"untyped inline zero", []any{mapBody, reduceBody, map[string]any{"out": map[string]any{"inline": 0}}}, false},
		{"untyped replace", []any{mapBody, reduceBody, map[string]any{"out": map[string]any{"replace": "target"}}}, false},
		{"untyped without out", []any{mapBody, reduceBody, map[string]any{"limit": 10}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inlineOutput(tt.args); got != tt.want {
				t.Errorf("inlineOutput(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}
