package cache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Operation names used as metric attributes.
const (
	opAggregate = "aggregate"
	opMapReduce = "mapreduce"
)

// Metrics records cache outcomes per operation. A nil *Metrics is valid and
// records nothing, so instrumentation stays optional.
//
// The core itself never logs; exporter wiring belongs to the embedding
// application, which supplies the meter.
type Metrics struct {
	hits     metric.Int64Counter
	misses   metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates cache metrics on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	hits, err := meter.Int64Counter(
		"querycache.hits",
		metric.WithDescription("Cached query invocations served from the cache"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	misses, err := meter.Int64Counter(
		"querycache.misses",
		metric.WithDescription("Cached query invocations that executed the real query"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(
		"querycache.errors",
		metric.WithDescription("Cached query invocations that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"querycache.duration_ms",
		metric.WithDescription("Cached query invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		hits:     hits,
		misses:   misses,
		errors:   errs,
		duration: duration,
	}, nil
}

func (m *Metrics) recordHit(ctx context.Context, op string, elapsed time.Duration) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String("query.op", op))
	m.hits.Add(ctx, 1, opt)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0, opt)
}

func (m *Metrics) recordMiss(ctx context.Context, op string, elapsed time.Duration) {
	if m == nil {
		return
	}
	opt := metric.WithAttributes(attribute.String("query.op", op))
	m.misses.Add(ctx, 1, opt)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0, opt)
}

func (m *Metrics) recordError(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("query.op", op)))
}
