package funnel

import (
	"context"

	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/logger"
	"github.com/kbukum/funnel/queue"
)

// envelope is a stage queue element. A stop envelope carries no task.
type envelope struct {
	task Task
	stop bool
}

// emission is an output queue element. The last emission carries no value.
type emission struct {
	value any
	last  bool
}

// worker pulls envelopes from in until it sees a stop envelope.
type worker struct {
	name  string
	stage string
	in    *queue.Queue[envelope]
	fn    Func
	log   *logger.Logger

	// forward hands a non-nil result to the next stage.
	forward func(ctx context.Context, v any) error
	// onStop runs after the stop envelope has been marked done.
	onStop func(ctx context.Context) error
}

func newTransformWorker(name string, in, out *queue.Queue[envelope], fn Func, log *logger.Logger) *worker {
	return &worker{
		name:  name,
		stage: StageTransform,
		in:    in,
		fn:    fn,
		log:   log,
		forward: func(ctx context.Context, v any) error {
			return out.Put(ctx, envelope{task: Infer(v)})
		},
	}
}

func newReducer(in *queue.Queue[envelope], out *queue.Queue[emission], fn Func, log *logger.Logger) *worker {
	return &worker{
		name:  "reducer",
		stage: StageReduce,
		in:    in,
		fn:    fn,
		log:   log,
		forward: func(ctx context.Context, v any) error {
			return out.Put(ctx, emission{value: v})
		},
		onStop: func(ctx context.Context) error {
			return out.Put(ctx, emission{last: true})
		},
	}
}

// run processes envelopes and returns the worker's final counters.
// The returned error is nil only when the worker stopped on its stop envelope.
func (w *worker) run(ctx context.Context) (stats WorkerStats, err error) {
	stats = WorkerStats{Name: w.name, Stage: w.stage, State: StateRunning}
	log := w.log.WithFields(logger.Fields(logger.FieldWorker, w.name, logger.FieldStage, w.stage))
	log.Debug("worker started")

	defer func() {
		fields := logger.Fields(
			logger.FieldState, stats.State.String(),
			"processed", stats.Processed,
			"emitted", stats.Emitted,
		)
		if stats.State == StateFailed {
			log.Error("worker failed", logger.MergeWithError(fields, err))
			return
		}
		log.Debug("worker exited", fields)
	}()

	for {
		env, err := w.in.Get(ctx)
		if err != nil {
			stats.State = StateTerminated
			return stats, err
		}

		if env.stop {
			stats.State = StateStopping
			if err := w.in.TaskDone(); err != nil {
				stats.State = StateFailed
				return stats, errors.Internal(err)
			}
			if w.onStop != nil {
				if err := w.onStop(ctx); err != nil {
					stats.State = StateTerminated
					return stats, err
				}
			}
			stats.State = StateStopped
			return stats, nil
		}

		stats.Processed++
		out, err := Dispatch(ctx, w.fn, env.task)
		if err != nil {
			if ctx.Err() != nil {
				stats.State = StateTerminated
				return stats, ctx.Err()
			}
			stats.State = StateFailed
			return stats, errors.Dispatch(w.stage, w.name, err).WithDetail(logger.FieldShape, env.task.Shape().String())
		}

		if out != nil {
			if err := w.forward(ctx, out); err != nil {
				stats.State = StateTerminated
				return stats, err
			}
			stats.Emitted++
		}

		if err := w.in.TaskDone(); err != nil {
			stats.State = StateFailed
			return stats, errors.Internal(err)
		}
	}
}
