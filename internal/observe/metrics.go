// Package observe provides application-wide observability primitives for
// Moorline: OpenTelemetry metrics, tracing helpers, and HTTP middleware that
// ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Moorline metrics.
const meterName = "github.com/moorline/moorline"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ClassifyDuration tracks shape classification latency, including the
	// LLM fallback when it runs.
	ClassifyDuration metric.Float64Histogram

	// CleanDuration tracks the LLM cleaning stage latency.
	CleanDuration metric.Float64Histogram

	// EmbedDuration tracks post-insert embedding latency.
	EmbedDuration metric.Float64Histogram

	// --- Counters ---

	// IngestRequests counts ingestion attempts. Use with attributes:
	//   attribute.String("shape", ...), attribute.String("method", ...), attribute.String("status", ...)
	IngestRequests metric.Int64Counter

	// ParkedTranscripts counts review-queue insertions. Use with attribute:
	//   attribute.String("category", ...)
	ParkedTranscripts metric.Int64Counter

	// ProviderErrors counts collaborator errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM round-trip latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ClassifyDuration, err = m.Float64Histogram("moorline.classify.duration",
		metric.WithDescription("Latency of shape classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CleanDuration, err = m.Float64Histogram("moorline.clean.duration",
		metric.WithDescription("Latency of LLM transcript cleaning."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbedDuration, err = m.Float64Histogram("moorline.embed.duration",
		metric.WithDescription("Latency of post-insert embedding generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.IngestRequests, err = m.Int64Counter("moorline.ingest.requests",
		metric.WithDescription("Total ingestion attempts by shape, classification method, and status."),
	); err != nil {
		return nil, err
	}
	if met.ParkedTranscripts, err = m.Int64Counter("moorline.review.parked",
		metric.WithDescription("Total transcripts parked in the review queue by failure category."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("moorline.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("moorline.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordIngest records an ingestion attempt with the standard attribute set.
func (m *Metrics) RecordIngest(ctx context.Context, shape, method, status string) {
	m.IngestRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("shape", shape),
			attribute.String("method", method),
			attribute.String("status", status),
		),
	)
}

// RecordParked records a review-queue insertion for the given failure category.
func (m *Metrics) RecordParked(ctx context.Context, category string) {
	m.ParkedTranscripts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("category", category)),
	)
}

// RecordProviderError records a collaborator error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
