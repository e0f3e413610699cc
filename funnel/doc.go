// Package funnel runs a two-stage fan-out / fan-in pipeline.
//
// A pool of transform workers consumes items from an input iterator in
// parallel. Their results are funneled into a single reducer, which sees them
// one at a time in arrival order and may emit final results. The caller pulls
// those results through the returned iterator:
//
//	double := funnel.Fn(func(_ context.Context, n int) (int, error) { return n * 2, nil })
//	f, err := funnel.Run(ctx, pipeline.FromSlice(nums).Iter(ctx), double, nil, funnel.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	for {
//	    v, ok, err := f.Next(ctx)
//	    ...
//	}
//
// Every input item is shaped into a Task before it enters the pipeline:
// slices become positional arguments, string-keyed maps become named
// arguments and everything else is passed as a single value. A callable
// returning nil produces no output.
//
// All three queues between the stages are bounded, so a slow reducer or a
// slow caller slows the transform workers down instead of buffering without
// limit. While feeding input the orchestrator hands any ready output to the
// caller, so a full output queue never blocks the feed.
//
// Shutdown is ordered: one stop marker per transform worker, a join on the
// transform queue, one stop marker for the reducer, a join on the reduce queue
// and finally a drain of the output queue bounded by Config.DrainTimeout.
// The first worker error cancels every other worker and is reported by the
// next call to Next.
package funnel
