// Package observe provides application-wide observability primitives for
// Kanade: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all Kanade metrics.
const meterName = "github.com/hikaline/kanade"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// PlaybackDuration tracks audio clip playback time.
	PlaybackDuration metric.Float64Histogram

	// --- Queue depth gauges ---

	// TextQueueDepth samples the synthesis queue depth at job pickup.
	TextQueueDepth metric.Int64Gauge

	// AudioQueueDepth samples the playback queue depth at job pickup.
	AudioQueueDepth metric.Int64Gauge

	// --- Counters ---

	// CommentsProcessed counts inbound comments that entered the pipeline.
	// Use with attribute: attribute.String("kind", "comment"|"command")
	CommentsProcessed metric.Int64Counter

	// CommentsSkipped counts comments filtered before synthesis. Use with
	// attribute: attribute.String("reason", ...)
	CommentsSkipped metric.Int64Counter

	// DroppedJobs counts pipeline jobs lost to failures or full queues.
	// Use with attribute: attribute.String("stage", "synthesis"|"playback")
	DroppedJobs metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for speech-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SynthesisDuration, err = m.Float64Histogram("kanade.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("kanade.playback.duration",
		metric.WithDescription("Playback time per audio clip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Queue depth gauges.
	if met.TextQueueDepth, err = m.Int64Gauge("kanade.queue.text.depth",
		metric.WithDescription("Synthesis queue depth sampled at job pickup."),
	); err != nil {
		return nil, err
	}
	if met.AudioQueueDepth, err = m.Int64Gauge("kanade.queue.audio.depth",
		metric.WithDescription("Playback queue depth sampled at job pickup."),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CommentsProcessed, err = m.Int64Counter("kanade.comments.processed",
		metric.WithDescription("Total inbound comments by kind."),
	); err != nil {
		return nil, err
	}
	if met.CommentsSkipped, err = m.Int64Counter("kanade.comments.skipped",
		metric.WithDescription("Total comments filtered before synthesis by reason."),
	); err != nil {
		return nil, err
	}
	if met.DroppedJobs, err = m.Int64Counter("kanade.pipeline.dropped",
		metric.WithDescription("Total pipeline jobs dropped by stage."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("kanade.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("kanade.http.request.duration",
		metric.WithDescription("Admin request latency by method and route."),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordComment records one processed inbound comment.
func (m *Metrics) RecordComment(ctx context.Context, kind string) {
	m.CommentsProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordSkip records one comment filtered before synthesis.
func (m *Metrics) RecordSkip(ctx context.Context, reason string) {
	m.CommentsSkipped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
