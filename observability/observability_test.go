package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("funnel")

	if cfg.ServiceName != "funnel" {
		t.Errorf("expected ServiceName 'funnel', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("funnel")

	if cfg.ServiceName != "funnel" {
		t.Errorf("expected ServiceName 'funnel', got %s", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestNewMetrics_Noop(t *testing.T) {
	metrics, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}

	ctx := context.Background()
	metrics.RecordRunStart(ctx)
	metrics.RecordFed(ctx, 10)
	metrics.RecordWorker(ctx, "transform", 10, 8)
	metrics.RecordError(ctx, "DISPATCH_ERROR", "transform")
	metrics.RecordRunEnd(ctx, StatusOK, 100*time.Millisecond)
}

func TestMetrics_Recorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	metrics.RecordRunStart(ctx)
	metrics.RecordFed(ctx, 7)
	metrics.RecordWorker(ctx, "transform", 4, 4)
	metrics.RecordWorker(ctx, "transform", 3, 2)
	metrics.RecordWorker(ctx, "reduce", 6, 1)
	metrics.RecordRunEnd(ctx, StatusOK, time.Second)

	sums := collectSums(t, reader)
	if got := sums[MetricTasksFed][""]; got != 7 {
		t.Errorf("expected 7 fed, got %d", got)
	}
	if got := sums[MetricTasksProcessed]["transform"]; got != 7 {
		t.Errorf("expected 7 processed by transform, got %d", got)
	}
	if got := sums[MetricResultsEmitted]["transform"]; got != 6 {
		t.Errorf("expected 6 emitted by transform, got %d", got)
	}
	if got := sums[MetricResultsEmitted]["reduce"]; got != 1 {
		t.Errorf("expected 1 emitted by reduce, got %d", got)
	}
	if got := sums[MetricRunsActive][""]; got != 0 {
		t.Errorf("expected no active runs, got %d", got)
	}
	if got := sums[MetricRunsTotal][StatusOK]; got != 1 {
		t.Errorf("expected one ok run, got %d", got)
	}
}

func TestRunContextFromContext(t *testing.T) {
	rc := NewRunContext("run-1", 4, nil)
	ctx := WithRunContext(context.Background(), rc)

	retrieved := RunContextFromContext(ctx)
	if retrieved == nil {
		t.Fatal("expected run context from context")
	}
	if retrieved.RunID != "run-1" {
		t.Errorf("expected RunID run-1, got %s", retrieved.RunID)
	}
	if RunContextFromContext(context.Background()) != nil {
		t.Error("expected nil when run context not set")
	}
}

func TestRunContext_Duration(t *testing.T) {
	rc := NewRunContext("run-1", 2, nil)
	rc.StartTime = time.Now().Add(-50 * time.Millisecond)

	duration := rc.Duration()
	if duration < 45*time.Millisecond || duration > 200*time.Millisecond {
		t.Errorf("expected duration around 50ms, got %v", duration)
	}
}

func TestRunContext_NilMetrics(t *testing.T) {
	rc := NewRunContext("run-1", 2, nil)
	ctx, span := rc.StartRun(context.Background())
	rc.RecordFed(ctx, 1)
	rc.RecordWorker(ctx, "reduce", 1, 1)
	rc.RecordError(ctx, "INTERNAL_ERROR", "reduce")
	rc.EndRun(ctx, span, StatusOK, nil)
}

func TestRunContext_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	rc := NewRunContext("run-42", 3, nil)
	rc.Tracer = tp.Tracer("test")

	ctx, span := rc.StartRun(context.Background())
	if RunContextFromContext(ctx) != rc {
		t.Error("expected StartRun to store the run context")
	}
	rc.EndRun(ctx, span, StatusError, fmt.Errorf("boom"))

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	s := ended[0]
	if s.Name() != SpanFunnelRun {
		t.Errorf("expected span %s, got %s", SpanFunnelRun, s.Name())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status())
	}
	attrs := attrMap(s.Attributes())
	if attrs[AttrRunID] != "run-42" {
		t.Errorf("expected run id attribute, got %v", attrs[AttrRunID])
	}
	if attrs[AttrWorkers] != int64(3) {
		t.Errorf("expected workers=3, got %v", attrs[AttrWorkers])
	}
	if attrs[AttrStatus] != StatusError {
		t.Errorf("expected status=error, got %v", attrs[AttrStatus])
	}
}

func TestTracerAndMeter(t *testing.T) {
	if Tracer("test-tracer") == nil {
		t.Fatal("expected non-nil tracer")
	}
	if Meter("test-meter") == nil {
		t.Fatal("expected non-nil meter")
	}
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test-operation")
	defer span.End()

	if span == nil {
		t.Fatal("expected non-nil span")
	}
	if !trace.SpanFromContext(ctx).SpanContext().Equal(span.SpanContext()) {
		t.Fatal("expected span in context")
	}
}

func TestSetSpanAttribute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "test-attrs")
	SetSpanAttribute(ctx, "string-key", "value")
	SetSpanAttribute(ctx, "int-key", 42)
	SetSpanAttribute(ctx, "int64-key", int64(100))
	SetSpanAttribute(ctx, "float-key", 3.14)
	SetSpanAttribute(ctx, "bool-key", true)
	SetSpanAttribute(ctx, "string-slice-key", []string{"a", "b"})
	SetSpanAttribute(ctx, "duration-key", 1500*time.Millisecond)
	SetSpanAttribute(ctx, "unsupported-key", struct{}{})
	SetSpanError(ctx, fmt.Errorf("test error"))
	span.End()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	attrs := attrMap(spans[0].Attributes)
	if _, ok := attrs["unsupported-key"]; ok {
		t.Error("expected unsupported value to be dropped")
	}
	if attrs["duration-key"] != int64(1500) {
		t.Errorf("expected duration in ms, got %v", attrs["duration-key"])
	}
	if attrs[AttrErrorMessage] != "test error" {
		t.Errorf("expected error message attribute, got %v", attrs[AttrErrorMessage])
	}
	if len(attrs) != 8 {
		t.Errorf("expected 8 attributes, got %d: %v", len(attrs), attrs)
	}
	if len(spans[0].Events) != 1 {
		t.Errorf("expected recorded error event, got %d events", len(spans[0].Events))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
}

func TestSetSpanHelpersNoSpan(t *testing.T) {
	ctx := context.Background()
	SetSpanAttribute(ctx, "key", "value")
	SetSpanError(ctx, fmt.Errorf("no span error"))
	SetSpanError(ctx, nil)
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want string
	}{
		{"always sample", 1.0, "AlwaysOnSampler"},
		{"never sample", 0.0, "AlwaysOffSampler"},
		{"ratio based", 0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := samplerFor(tc.rate).Description(); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource(ExporterConfig{ServiceName: "funnel", ServiceVersion: "1.2.3", Environment: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	attrs := attrMap(res.Attributes())
	if attrs["service.name"] != "funnel" {
		t.Errorf("expected service.name=funnel, got %v", attrs["service.name"])
	}
	if attrs["environment"] != "test" {
		t.Errorf("expected environment=test, got %v", attrs["environment"])
	}
}

func TestInitTracer(t *testing.T) {
	cfg := DefaultTracerConfig("funnel-test")
	tp, err := InitTracer(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	defer shutdownQuickly(tp.Shutdown)
}

func TestInitMeter(t *testing.T) {
	cfg := DefaultMeterConfig("funnel-test")
	cfg.Interval = 0
	mp, err := InitMeter(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("InitMeter: %v", err)
	}
	defer shutdownQuickly(mp.Shutdown)
}

// --- helpers ---

// shutdownQuickly bounds provider shutdown, which may try to reach an absent collector.
func shutdownQuickly(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}

func attrMap(kvs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

// collectSums returns int64 sum data points keyed by instrument name, then by
// the value of their "stage" or "status" attribute ("" when absent).
func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			byKey := make(map[string]int64)
			for _, dp := range sum.DataPoints {
				key := ""
				if v, ok := dp.Attributes.Value("stage"); ok {
					key = v.AsString()
				} else if v, ok := dp.Attributes.Value("status"); ok {
					key = v.AsString()
				}
				byKey[key] += dp.Value
			}
			out[m.Name] = byKey
		}
	}
	return out
}
