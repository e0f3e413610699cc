package pipeline

import "context"

// Map transforms each value using fn. An error from fn ends the iteration.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] {
			return MapIter(p.create(ctx), fn)
		},
	}
}

// MapIter is Map applied directly to an Iterator.
func MapIter[I, O any](src Iterator[I], fn func(context.Context, I) (O, error)) Iterator[O] {
	return &stepIter[I, O]{source: src, step: func(ctx context.Context, v I) (O, bool, error) {
		out, err := fn(ctx, v)
		return out, err == nil, err
	}}
}

// Filter keeps only values that satisfy the predicate.
func Filter[T any](p *Pipeline[T], fn func(T) bool) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &stepIter[T, T]{source: p.create(ctx), step: func(_ context.Context, v T) (T, bool, error) {
				return v, fn(v), nil
			}}
		},
	}
}

// Tap calls fn for each value before passing it through unchanged. It runs
// on the goroutine pulling the pipeline, which makes it the place for
// progress counters and logging.
func Tap[T any](p *Pipeline[T], fn func(context.Context, T) error) *Pipeline[T] {
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &stepIter[T, T]{source: p.create(ctx), step: func(ctx context.Context, v T) (T, bool, error) {
				err := fn(ctx, v)
				return v, err == nil, err
			}}
		},
	}
}

// Take ends the pipeline after n values without pulling the next one.
// A negative n takes everything.
func Take[T any](p *Pipeline[T], n int) *Pipeline[T] {
	if n < 0 {
		return p
	}
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			return &takeIter[T]{source: p.create(ctx), remaining: n}
		},
	}
}

// stepIter applies step to each source value. step returns the value to
// emit and whether to emit it; an error ends the iteration.
type stepIter[I, O any] struct {
	source Iterator[I]
	step   func(context.Context, I) (O, bool, error)
}

func (it *stepIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	for {
		v, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		out, keep, err := it.step(ctx, v)
		if err != nil {
			return zero, false, err
		}
		if keep {
			return out, true, nil
		}
	}
}

func (it *stepIter[I, O]) Close() error { return it.source.Close() }

type takeIter[T any] struct {
	source    Iterator[T]
	remaining int
}

func (it *takeIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.remaining <= 0 {
		var zero T
		return zero, false, nil
	}
	v, ok, err := it.source.Next(ctx)
	if ok && err == nil {
		it.remaining--
	}
	return v, ok, err
}

func (it *takeIter[T]) Close() error { return it.source.Close() }
