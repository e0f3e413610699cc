package funnel

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/funnel/logger"
	"github.com/kbukum/funnel/observability"
)

// Option customizes a run.
type Option func(*options)

type options struct {
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// WithLogger sets the logger used by the orchestrator and its workers.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records run, worker and error metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer starts the run span on t instead of the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get("funnel")
	}
	return o
}
