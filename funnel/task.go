package funnel

import "fmt"

// Shape identifies how a Task's payload is handed to a callable.
type Shape int

const (
	// ShapeSingle passes the payload as the only positional argument.
	ShapeSingle Shape = iota
	// ShapePositional spreads the payload as ordered arguments.
	ShapePositional
	// ShapeKeyed passes the payload as named arguments.
	ShapeKeyed
)

func (s Shape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapePositional:
		return "positional"
	case ShapeKeyed:
		return "keyed"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// Args are positional arguments.
type Args []any

// Kwargs are named arguments.
type Kwargs map[string]any

// Task is one unit of work together with the shape its callable receives.
// The zero Task is a single nil value.
type Task struct {
	shape  Shape
	value  any
	args   Args
	kwargs Kwargs
}

// Single wraps v so it is delivered as one value, even if it is a slice or map.
func Single(v any) Task {
	return Task{shape: ShapeSingle, value: v}
}

// Positional builds a task whose callable receives args in order.
func Positional(args ...any) Task {
	return Task{shape: ShapePositional, args: Args(args)}
}

// Keyed builds a task whose callable receives kw as named arguments.
func Keyed(kw Kwargs) Task {
	return Task{shape: ShapeKeyed, kwargs: kw}
}

// Infer decides the shape of v from its runtime type. A Task is returned
// unchanged, Args and []any are positional, Kwargs and map[string]any are
// keyed and anything else, nil included, is a single value.
func Infer(v any) Task {
	switch x := v.(type) {
	case Task:
		return x
	case Args:
		return Task{shape: ShapePositional, args: x}
	case []any:
		return Task{shape: ShapePositional, args: Args(x)}
	case Kwargs:
		return Task{shape: ShapeKeyed, kwargs: x}
	case map[string]any:
		return Task{shape: ShapeKeyed, kwargs: Kwargs(x)}
	default:
		return Single(v)
	}
}

// Shape reports how the payload is delivered.
func (t Task) Shape() Shape { return t.shape }

// Payload returns the raw value: the single value, the positional arguments
// as []any or the named arguments as map[string]any.
func (t Task) Payload() any {
	switch t.shape {
	case ShapePositional:
		return []any(t.args)
	case ShapeKeyed:
		return map[string]any(t.kwargs)
	default:
		return t.value
	}
}

// Args returns the positional arguments, or nil for other shapes.
func (t Task) Args() Args { return t.args }

// Kwargs returns the named arguments, or nil for other shapes.
func (t Task) Kwargs() Kwargs { return t.kwargs }

func (t Task) String() string {
	return fmt.Sprintf("%s(%v)", t.shape, t.Payload())
}
