package funnel

import (
	"context"
	"fmt"

	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/pipeline"
)

// Pipe adapts a run as a pipeline stage. The configuration is checked
// eagerly; the run itself starts when the returned pipeline is iterated.
func Pipe[I any](p *pipeline.Pipeline[I], transform, reduce Func, cfg Config, opts ...Option) (*pipeline.Pipeline[any], error) {
	cfg, err := prepare(p != nil, transform, cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.FromFunc(func(ctx context.Context) pipeline.Iterator[any] {
		f, err := Run(ctx, p.Iter(ctx), transform, reduce, cfg, opts...)
		if err != nil {
			return pipeline.Failed[any](err)
		}
		return f
	}), nil
}

// Typed asserts every value of it to T. A value of another type fails the
// iteration with an INVALID_ARGUMENT error.
func Typed[T any](it pipeline.Iterator[any]) pipeline.Iterator[T] {
	return pipeline.MapIter(it, func(_ context.Context, v any) (T, error) {
		t, ok := v.(T)
		if !ok {
			var zero T
			return zero, errors.InvalidArgument(fmt.Sprintf("expected %T output, got %T", zero, v))
		}
		return t, nil
	})
}

// Collect runs a funnel to completion and returns every output value.
// Values received before a failure are returned along with the error.
func Collect[I any](ctx context.Context, src pipeline.Iterator[I], transform, reduce Func, cfg Config, opts ...Option) ([]any, error) {
	f, err := Run(ctx, src, transform, reduce, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return pipeline.CollectIter[any](ctx, f)
}
