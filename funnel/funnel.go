package funnel

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/logger"
	"github.com/kbukum/funnel/observability"
	"github.com/kbukum/funnel/pipeline"
	"github.com/kbukum/funnel/queue"
)

// errClosedEarly is the cancellation cause used by Close.
var errClosedEarly = stderrors.New("funnel: closed")

type phase int

const (
	phaseFeed phase = iota
	phaseStopTransform
	phaseJoinTransform
	phaseStopReduce
	phaseJoinReduce
	phaseDrain
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseFeed:
		return "feed"
	case phaseStopTransform:
		return "stop-transform"
	case phaseJoinTransform:
		return "join-transform"
	case phaseStopReduce:
		return "stop-reduce"
	case phaseJoinReduce:
		return "join-reduce"
	case phaseDrain:
		return "drain"
	default:
		return "done"
	}
}

// Funnel is a running pipeline. It is a single-pass iterator over the
// reducer's output and must be used from one goroutine, although Close may
// be called from another to abort a blocked Next.
type Funnel struct {
	id  string
	cfg Config
	log *logger.Logger

	next     func(ctx context.Context) (any, bool, error)
	closeSrc func() error

	transformQ *queue.Queue[envelope]
	reduceQ    *queue.Queue[envelope]
	outputQ    *queue.Queue[emission]

	// abort is cancelled by a worker failure, by Close or by the run context.
	// Normal completion never cancels it.
	abort     context.Context
	cancel    context.CancelCauseFunc
	exited    chan struct{}
	rc        *observability.RunContext
	span      trace.Span
	spanCtx   context.Context
	started   time.Time
	closeOnce sync.Once
	closeErr  error

	// Owned by the goroutine calling Next.
	phase     phase
	pending   *envelope
	sentinels int

	mu        sync.Mutex
	err       error
	completed bool
	fed       int
	emitted   int
	workers   []WorkerStats
}

// Run validates cfg, starts cfg.Workers-1 transform workers and one reducer,
// and returns an iterator over the reducer's output. Input is pulled from src
// lazily as the caller pulls output. A nil reduce forwards transform results
// unchanged.
//
// On a configuration error src is not touched and nothing is started.
// Otherwise the Funnel owns src and closes it on Close.
func Run[I any](ctx context.Context, src pipeline.Iterator[I], transform, reduce Func, cfg Config, opts ...Option) (*Funnel, error) {
	cfg, err := prepare(src != nil, transform, cfg)
	if err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	f := &Funnel{
		id:  uuid.NewString(),
		cfg: cfg,
		next: func(ctx context.Context) (any, bool, error) {
			v, ok, err := src.Next(ctx)
			return v, ok, err
		},
		closeSrc:   src.Close,
		transformQ: queue.New[envelope](cfg.TransformCapacity),
		reduceQ:    queue.New[envelope](cfg.ReduceCapacity),
		outputQ:    queue.New[emission](cfg.OutputCapacity),
		exited:     make(chan struct{}),
		started:    time.Now(),
	}
	f.log = o.log.WithFields(logger.Fields(logger.FieldRunID, f.id))

	f.rc = observability.NewRunContext(f.id, cfg.Workers, o.metrics)
	f.rc.Tracer = o.tracer
	f.spanCtx, f.span = f.rc.StartRun(ctx)

	f.abort, f.cancel = context.WithCancelCause(f.spanCtx)
	g, gctx := errgroup.WithContext(f.abort)

	workers := make([]*worker, 0, cfg.Workers)
	for i := 1; i <= cfg.TransformWorkers(); i++ {
		name := fmt.Sprintf("transform-%d", i)
		workers = append(workers, newTransformWorker(name, f.transformQ, f.reduceQ, transform, f.log))
	}
	workers = append(workers, newReducer(f.reduceQ, f.outputQ, reduce, f.log))

	for _, w := range workers {
		g.Go(func() error {
			stats, err := w.run(gctx)
			f.workerExited(stats, err)
			return err
		})
	}
	go func() {
		_ = g.Wait()
		close(f.exited)
	}()

	f.log.Debug("funnel started", logger.Fields(
		"workers", cfg.Workers,
		"transform_capacity", cfg.TransformCapacity,
		"reduce_capacity", cfg.ReduceCapacity,
		"output_capacity", cfg.OutputCapacity,
	))
	return f, nil
}

func prepare(hasSource bool, transform Func, cfg Config) (Config, error) {
	if !hasSource {
		return cfg, errors.Configuration("source", "an input iterator is required")
	}
	if transform == nil {
		return cfg, errors.Configuration("transform", "a transform function is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// workerExited runs on the worker goroutine. A failing worker cancels the
// run before errgroup sees its error, so the cause reaching the caller is
// always the first failure.
func (f *Funnel) workerExited(stats WorkerStats, err error) {
	if err != nil {
		f.cancel(err)
	}
	f.rc.RecordWorker(f.spanCtx, stats.Stage, stats.Processed, stats.Emitted)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.workers = append(f.workers, stats)
}

// ID returns the run identifier attached to logs and spans.
func (f *Funnel) ID() string { return f.id }

// Config returns the effective configuration.
func (f *Funnel) Config() Config { return f.cfg }

// Stats returns a snapshot of the run counters.
func (f *Funnel) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		RunID:    f.id,
		Fed:      f.fed,
		Emitted:  f.emitted,
		Duration: time.Since(f.started),
		Workers:  append([]WorkerStats(nil), f.workers...),
	}
}

// Err returns the error that ended the run, if any.
func (f *Funnel) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Next returns the next reducer output. It returns (nil, false, nil) once
// every stage has finished. After a failure every call returns the same error.
func (f *Funnel) Next(ctx context.Context) (any, bool, error) {
	if err := f.Err(); err != nil {
		return nil, false, err
	}
	if f.phase == phaseDone {
		return nil, false, nil
	}
	if f.abort.Err() != nil {
		if err := f.classify(ctx, context.Cause(f.abort)); err != nil {
			f.fail(err)
			return nil, false, err
		}
		f.phase = phaseDone
		return nil, false, nil
	}

	opCtx, release := f.operationContext(ctx)
	defer release()

	v, ok, err := f.advance(opCtx)
	if err != nil {
		err = f.classify(ctx, err)
		if err == nil {
			f.phase = phaseDone
			return nil, false, nil
		}
		f.fail(err)
		return nil, false, err
	}
	if !ok {
		f.phase = phaseDone
		f.mu.Lock()
		f.completed = true
		f.mu.Unlock()
		f.log.Debug("funnel exhausted")
		_ = f.Close()
		return nil, false, nil
	}

	f.mu.Lock()
	f.emitted++
	f.mu.Unlock()
	return v, true, nil
}

// advance moves the state machine until it has a value to hand out, the
// terminal marker is seen or an operation fails.
func (f *Funnel) advance(ctx context.Context) (any, bool, error) {
	for {
		if f.phase < phaseDrain {
			if em, ok := f.outputQ.TryGet(); ok {
				return f.receive(em)
			}
		}

		switch f.phase {
		case phaseFeed:
			if f.pending == nil {
				item, ok, err := f.next(ctx)
				if err != nil {
					return nil, false, err
				}
				if !ok {
					f.log.Debug("input exhausted", logger.Fields("fed", f.Stats().Fed))
					f.rc.RecordFed(f.spanCtx, f.Stats().Fed)
					f.sentinels = f.cfg.TransformWorkers()
					f.phase = phaseStopTransform
					continue
				}
				f.pending = &envelope{task: Infer(item)}
			}
			em, got, err := queue.PutOrGet(ctx, f.transformQ, *f.pending, f.outputQ)
			if err != nil {
				return nil, false, err
			}
			if got {
				return f.receive(em)
			}
			f.pending = nil
			f.mu.Lock()
			f.fed++
			f.mu.Unlock()

		case phaseStopTransform:
			if f.sentinels == 0 {
				f.phase = phaseJoinTransform
				continue
			}
			em, got, err := queue.PutOrGet(ctx, f.transformQ, envelope{stop: true}, f.outputQ)
			if err != nil {
				return nil, false, err
			}
			if got {
				return f.receive(em)
			}
			f.sentinels--

		case phaseJoinTransform:
			select {
			case <-f.transformQ.Idle():
				f.phase = phaseStopReduce
			case em := <-f.outputQ.Recv():
				return f.receive(em)
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}

		case phaseStopReduce:
			em, got, err := queue.PutOrGet(ctx, f.reduceQ, envelope{stop: true}, f.outputQ)
			if err != nil {
				return nil, false, err
			}
			if got {
				return f.receive(em)
			}
			f.phase = phaseJoinReduce

		case phaseJoinReduce:
			select {
			case <-f.reduceQ.Idle():
				f.phase = phaseDrain
			case em := <-f.outputQ.Recv():
				return f.receive(em)
			case <-ctx.Done():
				return nil, false, ctx.Err()
			}

		case phaseDrain:
			em, err := f.outputQ.GetTimeout(ctx, f.cfg.DrainTimeout)
			if stderrors.Is(err, queue.ErrTimeout) {
				return nil, false, errors.DrainTimeout(f.cfg.DrainTimeout)
			}
			if err != nil {
				return nil, false, err
			}
			return f.receive(em)

		default:
			return nil, false, nil
		}
	}
}

// receive turns an emission into a Next result. The terminal marker is the
// reducer's last emission, so nothing can follow it.
func (f *Funnel) receive(em emission) (any, bool, error) {
	if em.last {
		return nil, false, nil
	}
	return em.value, true, nil
}

// operationContext merges the caller's context with the run's abort signal.
func (f *Funnel) operationContext(ctx context.Context) (context.Context, func()) {
	opCtx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(f.abort, func() {
		cancel(context.Cause(f.abort))
	})
	return opCtx, func() {
		stop()
		cancel(nil)
	}
}

// classify maps a failed operation to the error reported to the caller.
// A nil result means the run was closed early and simply ends.
func (f *Funnel) classify(ctx context.Context, err error) error {
	if f.abort.Err() != nil {
		cause := context.Cause(f.abort)
		switch {
		case stderrors.Is(cause, errClosedEarly):
			return nil
		case errors.IsAppError(cause):
			return cause
		default:
			return errors.Cancelled(cause)
		}
	}
	if ctx.Err() != nil {
		return errors.Cancelled(context.Cause(ctx))
	}
	if errors.IsAppError(err) {
		return err
	}
	if stderrors.Is(err, queue.ErrClosed) {
		return errors.Internal(err)
	}
	return err
}

// fail records err as the run's terminal error and tears the run down.
func (f *Funnel) fail(err error) {
	f.mu.Lock()
	if f.err == nil {
		f.err = err
	}
	f.mu.Unlock()

	stage := f.phase.String()
	code := "UNKNOWN"
	if appErr, ok := errors.AsAppError(err); ok {
		code = string(appErr.Code)
		if s, ok := appErr.Details["stage"].(string); ok {
			stage = s
		}
	}
	f.rc.RecordError(f.spanCtx, code, stage)
	f.log.Error("funnel failed", logger.MergeWithError(logger.Fields("phase", f.phase.String(), "code", code), err))
	_ = f.Close()
}

// Close stops every worker, waiting up to Config.ShutdownGrace for them to
// exit, then releases the queues and the input iterator. In-flight results
// are discarded. Close is idempotent and is called automatically when the
// run ends or fails.
func (f *Funnel) Close() error {
	f.closeOnce.Do(func() {
		f.cancel(errClosedEarly)

		timer := time.NewTimer(f.cfg.ShutdownGrace)
		select {
		case <-f.exited:
			timer.Stop()
		case <-timer.C:
			f.log.Warn("workers did not exit within shutdown grace", logger.Fields(
				"grace", f.cfg.ShutdownGrace.String(),
			))
		}

		f.transformQ.Close()
		f.reduceQ.Close()
		f.outputQ.Close()
		f.closeErr = f.closeSrc()

		stats := f.Stats()
		f.mu.Lock()
		err, completed := f.err, f.completed
		f.mu.Unlock()
		status := observability.StatusOK
		switch {
		case err != nil && errors.HasCode(err, errors.ErrCodeCancelled):
			status = observability.StatusCancelled
		case err != nil:
			status = observability.StatusError
		case !completed:
			status = observability.StatusCancelled
		}
		f.span.SetAttributes(
			attribute.Int(observability.AttrFed, stats.Fed),
			attribute.Int(observability.AttrEmitted, stats.Emitted),
		)
		f.rc.EndRun(f.spanCtx, f.span, status, err)

		f.log.Info("funnel finished", logger.Fields(
			"status", status,
			"fed", stats.Fed,
			"emitted", stats.Emitted,
			"transformed", stats.Processed(StageTransform),
			"reduced", stats.Processed(StageReduce),
			logger.FieldDuration, stats.Duration.Milliseconds(),
		))
	})
	return f.closeErr
}

// RunID returns the identifier of the run a callable is executing in, or ""
// outside a run.
func RunID(ctx context.Context) string {
	if rc := observability.RunContextFromContext(ctx); rc != nil {
		return rc.RunID
	}
	return ""
}
