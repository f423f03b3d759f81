package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the instruments for one run:
// - Traffic: combinations expanded, artifacts written, submissions made
// - Errors: failed submissions and retries
// - Latency: submission and whole-run duration
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
	config   string

	// Generation metrics
	Combinations   metric.Int64Gauge
	ArtifactsTotal metric.Int64Counter
	ArtifactBytes  metric.Int64Counter

	// Submission metrics
	SubmissionDuration metric.Float64Histogram
	SubmissionsTotal   metric.Int64Counter
	RetriesTotal       metric.Int64Counter
	BreakerOpenTotal   metric.Int64Counter

	// Run metrics
	RunDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on a private registry. The registry is
// written out with WriteTextfile; nothing is served over HTTP.
func NewMetrics(ctx context.Context, configName string) (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("sbt")
	m := &Metrics{registry: registry, provider: provider, config: configName}

	m.Combinations, err = meter.Int64Gauge(
		"sbt_combinations",
		metric.WithDescription("Number of matrix combinations in the last run"),
	)
	if err != nil {
		return nil, err
	}

	m.ArtifactsTotal, err = meter.Int64Counter(
		"sbt_artifacts_written_total",
		metric.WithDescription("Total number of job scripts written"),
	)
	if err != nil {
		return nil, err
	}

	m.ArtifactBytes, err = meter.Int64Counter(
		"sbt_artifact_bytes_total",
		metric.WithDescription("Total bytes of job scripts written"),
	)
	if err != nil {
		return nil, err
	}

	m.SubmissionDuration, err = meter.Float64Histogram(
		"sbt_submission_duration_seconds",
		metric.WithDescription("Scheduler submission latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	m.SubmissionsTotal, err = meter.Int64Counter(
		"sbt_submissions_total",
		metric.WithDescription("Total number of submissions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.RetriesTotal, err = meter.Int64Counter(
		"sbt_submission_retries_total",
		metric.WithDescription("Total submission retries after transient failures"),
	)
	if err != nil {
		return nil, err
	}

	m.BreakerOpenTotal, err = meter.Int64Counter(
		"sbt_breaker_open_total",
		metric.WithDescription("Total submissions attempted once because the breaker was open"),
	)
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram(
		"sbt_run_duration_seconds",
		metric.WithDescription("Whole run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 30, 60, 300, 900),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCombinations records the size of the expanded matrix.
func (m *Metrics) RecordCombinations(ctx context.Context, n int) {
	m.Combinations.Record(ctx, int64(n), metric.WithAttributes(configAttr(m.config)))
}

// RecordArtifactWritten records a job script written to disk.
func (m *Metrics) RecordArtifactWritten(ctx context.Context, size int) {
	attrs := metric.WithAttributes(configAttr(m.config))
	m.ArtifactsTotal.Add(ctx, 1, attrs)
	m.ArtifactBytes.Add(ctx, int64(size), attrs)
}

// RecordSubmission records one submission outcome with its duration.
func (m *Metrics) RecordSubmission(ctx context.Context, scheduler string, success bool, durationSeconds float64) {
	attrs := metric.WithAttributes(schedulerAttr(scheduler), successAttr(success))
	m.SubmissionsTotal.Add(ctx, 1, attrs)
	m.SubmissionDuration.Record(ctx, durationSeconds, attrs)
}

// RecordRetry records a retry after a transient submission failure.
func (m *Metrics) RecordRetry(ctx context.Context, scheduler string) {
	m.RetriesTotal.Add(ctx, 1, WithScheduler(scheduler))
}

// RecordBreakerOpen records a submission made without retries.
func (m *Metrics) RecordBreakerOpen(ctx context.Context, scheduler string) {
	m.BreakerOpenTotal.Add(ctx, 1, WithScheduler(scheduler))
}

// RecordRun records the end of a run.
func (m *Metrics) RecordRun(ctx context.Context, failed int, durationSeconds float64) {
	m.RunDuration.Record(ctx, durationSeconds, metric.WithAttributes(configAttr(m.config), outcomeAttr(failed)))
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the current metric values to path in the Prometheus
// text format, for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
