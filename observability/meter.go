package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/funnel/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ExporterConfig
	// Interval is how often metrics are pushed. Zero keeps the SDK default.
	Interval time.Duration
}

// DefaultMeterConfig pushes to a local collector every 15 seconds.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ExporterConfig: defaultExporterConfig(serviceName),
		Interval:       15 * time.Second,
	}
}

// InitMeter installs a periodic OTLP meter provider globally.
// The caller shuts the provider down on exit to push the last readings.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ExporterConfig)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Get("observability").Debug("meter initialized", logger.Fields(
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metric instrument names.
const (
	MetricRunsTotal      = "funnel.runs.total"
	MetricRunDuration    = "funnel.run.duration"
	MetricRunsActive     = "funnel.runs.active"
	MetricTasksFed       = "funnel.tasks.fed"
	MetricTasksProcessed = "funnel.tasks.processed"
	MetricResultsEmitted = "funnel.results.emitted"
	MetricErrorsTotal    = "funnel.errors.total"
)

// Metrics holds the OpenTelemetry instruments recorded by funnel runs.
type Metrics struct {
	runsTotal      metric.Int64Counter
	runDuration    metric.Float64Histogram
	runsActive     metric.Int64UpDownCounter
	tasksFed       metric.Int64Counter
	tasksProcessed metric.Int64Counter
	resultsEmitted metric.Int64Counter
	errorTotal     metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runsTotal, err := meter.Int64Counter(MetricRunsTotal,
		metric.WithDescription("Total number of funnel runs by final status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRunsTotal, err)
	}

	runDuration, err := meter.Float64Histogram(MetricRunDuration,
		metric.WithDescription("Duration of funnel runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricRunDuration, err)
	}

	runsActive, err := meter.Int64UpDownCounter(MetricRunsActive,
		metric.WithDescription("Number of funnel runs in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricRunsActive, err)
	}

	tasksFed, err := meter.Int64Counter(MetricTasksFed,
		metric.WithDescription("Input items put onto the transform queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTasksFed, err)
	}

	tasksProcessed, err := meter.Int64Counter(MetricTasksProcessed,
		metric.WithDescription("Tasks dispatched by workers, by stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricTasksProcessed, err)
	}

	resultsEmitted, err := meter.Int64Counter(MetricResultsEmitted,
		metric.WithDescription("Non-nil results forwarded by workers, by stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricResultsEmitted, err)
	}

	errorTotal, err := meter.Int64Counter(MetricErrorsTotal,
		metric.WithDescription("Total run errors by code and stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricErrorsTotal, err)
	}

	return &Metrics{
		runsTotal:      runsTotal,
		runDuration:    runDuration,
		runsActive:     runsActive,
		tasksFed:       tasksFed,
		tasksProcessed: tasksProcessed,
		resultsEmitted: resultsEmitted,
		errorTotal:     errorTotal,
	}, nil
}

// RecordRunStart increments the active run count.
func (m *Metrics) RecordRunStart(ctx context.Context) {
	m.runsActive.Add(ctx, 1)
}

// RecordRunEnd decrements active runs and records the completed run.
func (m *Metrics) RecordRunEnd(ctx context.Context, status string, duration time.Duration) {
	m.runsActive.Add(ctx, -1)
	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordFed records n input items handed to the transform stage.
func (m *Metrics) RecordFed(ctx context.Context, n int) {
	m.tasksFed.Add(ctx, int64(n))
}

// RecordWorker records the final counters of one worker.
func (m *Metrics) RecordWorker(ctx context.Context, stage string, processed, emitted int) {
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.tasksProcessed.Add(ctx, int64(processed), attrs)
	m.resultsEmitted.Add(ctx, int64(emitted), attrs)
}

// RecordError records a run error by code and stage.
func (m *Metrics) RecordError(ctx context.Context, code, stage string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("stage", stage),
	))
}
