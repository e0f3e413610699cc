// Package observability provides OpenTelemetry tracing and metrics for funnel
// runs.
//
// Tracing:
//
//	cfg := observability.DefaultTracerConfig("funnel")
//	cfg.Endpoint = "collector:4318"
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "scan.file")
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, &mcfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("funnel"))
//	metrics.RecordWorker(ctx, "transform", processed, emitted)
//
// Runs:
//
//	rc := observability.NewRunContext(runID, workers, metrics)
//	ctx, span := rc.StartRun(ctx)
//	defer rc.EndRun(ctx, span, observability.StatusOK, err)
package observability
