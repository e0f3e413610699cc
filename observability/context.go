package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Run statuses recorded on spans and metrics.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// RunContext holds observability context for one funnel run.
type RunContext struct {
	RunID     string
	Workers   int
	StartTime time.Time
	Metrics   *Metrics
	Tracer    trace.Tracer
}

// NewRunContext creates a new run context.
// If metrics is nil, metric recording is silently skipped.
func NewRunContext(runID string, workers int, metrics *Metrics) *RunContext {
	return &RunContext{
		RunID:     runID,
		Workers:   workers,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type runContextKey struct{}

// WithRunContext stores a RunContext in the context.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext from context, or nil.
func RunContextFromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return rc
	}
	return nil
}

// StartRun starts the run span, stores the run context and records the run start.
func (rc *RunContext) StartRun(ctx context.Context) (context.Context, trace.Span) {
	var span trace.Span
	if rc.Tracer != nil {
		ctx, span = rc.Tracer.Start(ctx, SpanFunnelRun)
	} else {
		ctx, span = StartSpan(ctx, SpanFunnelRun)
	}
	span.SetAttributes(
		attribute.String(AttrRunID, rc.RunID),
		attribute.Int(AttrWorkers, rc.Workers),
	)

	if rc.Metrics != nil {
		rc.Metrics.RecordRunStart(ctx)
	}
	return WithRunContext(ctx, rc), span
}

// EndRun ends the span and records run-end metrics.
func (rc *RunContext) EndRun(ctx context.Context, span trace.Span, status string, err error) {
	duration := rc.Duration()

	if err != nil {
		markError(span, err)
	}

	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if rc.Metrics != nil {
		rc.Metrics.RecordRunEnd(ctx, status, duration)
	}
}

// RecordWorker forwards a worker's final counters to the metrics, if any.
func (rc *RunContext) RecordWorker(ctx context.Context, stage string, processed, emitted int) {
	if rc.Metrics != nil {
		rc.Metrics.RecordWorker(ctx, stage, processed, emitted)
	}
}

// RecordFed forwards the fed count to the metrics, if any.
func (rc *RunContext) RecordFed(ctx context.Context, n int) {
	if rc.Metrics != nil {
		rc.Metrics.RecordFed(ctx, n)
	}
}

// RecordError forwards a run error to the metrics, if any.
func (rc *RunContext) RecordError(ctx context.Context, code, stage string) {
	if rc.Metrics != nil {
		rc.Metrics.RecordError(ctx, code, stage)
	}
}

// Duration returns the elapsed time since run start.
func (rc *RunContext) Duration() time.Duration {
	return time.Since(rc.StartTime)
}
