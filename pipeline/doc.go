// Package pipeline provides the pull-based Iterator contract shared by every
// stage of a funnel run, plus a few composable operators.
//
// Pipelines are lazy: no work happens until values are pulled via Collect,
// Drain, or ForEach. Each stage pulls from the previous stage on demand, so a
// slow consumer naturally slows its producers.
//
// The funnel orchestrator consumes an Iterator and is itself an Iterator, so
// record readers, funnels and writers plug into each other directly.
//
// # Operators
//
//   - Map / MapIter: transform each value
//   - Filter: keep values matching a predicate
//   - Tap: side-effect without altering the value (logging, progress)
//
// # Usage
//
//	src := pipeline.FromSlice([]int{1, 2, 3, 4, 5})
//	evens := pipeline.Filter(src, func(n int) bool { return n%2 == 0 })
//	labelled := pipeline.Map(evens, func(_ context.Context, n int) (string, error) {
//	    return fmt.Sprintf("#%d", n), nil
//	})
//	results, _ := pipeline.Collect(ctx, labelled)
package pipeline
