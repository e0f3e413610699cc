package funnel

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/kbukum/funnel/errors"
)

// Func is a transform or reduce callable. Exactly one of args and kwargs is
// set, according to the shape of the task being dispatched. Returning a nil
// result means the call produced no output.
type Func func(ctx context.Context, args Args, kwargs Kwargs) (any, error)

// Dispatch invokes f with t's payload unpacked according to its shape.
// A nil f forwards the payload unchanged. A panic in f is returned as an
// internal error.
func Dispatch(ctx context.Context, f Func, t Task) (out any, err error) {
	if f == nil {
		return t.Payload(), nil
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = errors.Internal(fmt.Errorf("callable panicked: %v", r)).WithDetail("shape", t.shape.String())
		}
	}()

	switch t.shape {
	case ShapePositional:
		return f(ctx, t.args, nil)
	case ShapeKeyed:
		return f(ctx, nil, t.kwargs)
	default:
		return f(ctx, Args{t.value}, nil)
	}
}

// Fn adapts a one-argument function. The task must carry exactly one
// positional or single value convertible to I.
func Fn[I, O any](fn func(context.Context, I) (O, error)) Func {
	return func(ctx context.Context, args Args, kwargs Kwargs) (any, error) {
		if err := expectPositional(args, kwargs, 1); err != nil {
			return nil, err
		}
		in, err := convert[I](args[0], "argument 0")
		if err != nil {
			return nil, err
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Fn2 adapts a two-argument function. The task must be positional with
// exactly two arguments.
func Fn2[A, B, O any](fn func(context.Context, A, B) (O, error)) Func {
	return func(ctx context.Context, args Args, kwargs Kwargs) (any, error) {
		if err := expectPositional(args, kwargs, 2); err != nil {
			return nil, err
		}
		a, err := convert[A](args[0], "argument 0")
		if err != nil {
			return nil, err
		}
		b, err := convert[B](args[1], "argument 1")
		if err != nil {
			return nil, err
		}
		out, err := fn(ctx, a, b)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// KwFn adapts a function taking named arguments only. Use Arg inside fn to
// read arguments with defaults.
func KwFn[O any](fn func(context.Context, Kwargs) (O, error)) Func {
	return func(ctx context.Context, args Args, kwargs Kwargs) (any, error) {
		if len(args) > 0 {
			return nil, errors.InvalidArgument(fmt.Sprintf("expected named arguments, got %d positional", len(args)))
		}
		if kwargs == nil {
			kwargs = Kwargs{}
		}
		out, err := fn(ctx, kwargs)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Identity returns a Func that emits what it receives: named arguments as a
// map, one positional argument as itself, several as a slice.
func Identity() Func {
	return func(_ context.Context, args Args, kwargs Kwargs) (any, error) {
		switch {
		case kwargs != nil:
			return map[string]any(kwargs), nil
		case len(args) == 1:
			return args[0], nil
		default:
			return []any(args), nil
		}
	}
}

// Arg reads the named argument name from kw, converting numbers between
// integer and float kinds. Missing arguments yield def.
func Arg[T any](kw Kwargs, name string, def T) (T, error) {
	v, ok := kw[name]
	if !ok {
		return def, nil
	}
	return convert[T](v, name)
}

func expectPositional(args Args, kwargs Kwargs, n int) error {
	if len(kwargs) > 0 {
		return errors.InvalidArgument(fmt.Sprintf("expected %d positional argument(s), got named arguments", n))
	}
	if len(args) != n {
		return errors.InvalidArgument(fmt.Sprintf("expected %d positional argument(s), got %d", n, len(args)))
	}
	return nil
}

// convert asserts v to T, falling back to numeric conversion when both are
// numbers and the value survives the conversion.
func convert[T any](v any, what string) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}

	var zero T
	target := reflect.TypeFor[T]()
	if v == nil {
		switch target.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
			return zero, nil
		}
		return zero, errors.InvalidArgument(fmt.Sprintf("%s: expected %s, got nil", what, target))
	}

	rv := reflect.ValueOf(v)
	if isNumeric(rv.Kind()) && isNumeric(target.Kind()) && lossless(rv, target) {
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, errors.InvalidArgument(fmt.Sprintf("%s: expected %s, got %T", what, target, v))
}

func isNumeric(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// lossless reports whether converting rv to target keeps its value.
func lossless(rv reflect.Value, target reflect.Type) bool {
	var f float64
	switch k := rv.Kind(); {
	case isInt(k):
		f = float64(rv.Int())
	case isUint(k):
		f = float64(rv.Uint())
	default:
		f = rv.Float()
	}

	tk := target.Kind()
	if isFloat(tk) {
		return true
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return false
	}
	if isUint(tk) && f < 0 {
		return false
	}
	back := rv.Convert(target)
	if isUint(tk) {
		return float64(back.Uint()) == f
	}
	return float64(back.Int()) == f
}
