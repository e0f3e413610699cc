package datascan

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/funnel"
	"github.com/kbukum/funnel/logger"
	"github.com/kbukum/funnel/pipeline"
)

// Multiple is the schema of a leaf seen with more than one non-null type.
const Multiple = "multiple"

// Null is the type name of a nil value.
const Null = "null"

// Segment is one step of a path: a map key or, when Elem is set, the
// elements of a list.
type Segment struct {
	Key  string
	Elem bool
}

// Path describes one leaf position seen across the scanned records.
type Path struct {
	Segments []Segment
	// Types counts the values seen at this position by type name.
	Types map[string]int
	// Count is the number of values seen, list elements counted individually.
	Count int
	// Prototype is the last non-null value seen.
	Prototype any
}

// String renders the path as a.b[].c. The root path renders as ".".
func (p Path) String() string {
	if len(p.Segments) == 0 {
		return "."
	}
	var b strings.Builder
	for i, s := range p.Segments {
		if s.Elem {
			b.WriteString("[]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

// Schema returns the leaf schema: its only non-null type, Null when nothing
// but nil was seen, or Multiple.
func (p Path) Schema() string {
	var found string
	for name := range p.Types {
		if name == Null {
			continue
		}
		if found != "" {
			return Multiple
		}
		found = name
	}
	if found == "" {
		return Null
	}
	return found
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used for shape conflicts.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

// Scanner accumulates the shape of a stream of nested records. It is safe
// for concurrent use, although a funnel reducer only ever calls it from one
// goroutine.
type Scanner struct {
	log *logger.Logger

	mu      sync.Mutex
	scanned int
	paths   map[string]*Path
	order   []string
}

// New returns an empty Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{paths: make(map[string]*Path)}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Get("datascan")
	}
	return s
}

// Scan adds one record.
func (s *Scanner) Scan(record any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanned++
	flatten(record, nil, func(segs []Segment, v any) {
		key := pathKey(segs)
		p, ok := s.paths[key]
		if !ok {
			p = &Path{Segments: slices.Clone(segs), Types: make(map[string]int)}
			s.paths[key] = p
			s.order = append(s.order, key)
		}
		p.Types[typeName(v)]++
		p.Count++
		if v != nil {
			p.Prototype = v
		}
	})
}

// ScanAll scans every value of it and closes it.
func (s *Scanner) ScanAll(ctx context.Context, it pipeline.Iterator[any]) error {
	return s.scanIter(ctx, it, -1)
}

// ScanOne scans the first value of it, if any, and closes it.
func (s *Scanner) ScanOne(ctx context.Context, it pipeline.Iterator[any]) error {
	return s.scanIter(ctx, it, 1)
}

func (s *Scanner) scanIter(ctx context.Context, it pipeline.Iterator[any], limit int) (err error) {
	defer func() {
		if cerr := it.Close(); err == nil {
			err = cerr
		}
	}()
	for n := 0; limit < 0 || n < limit; n++ {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		s.Scan(v)
	}
	return nil
}

// Scanned returns the number of records scanned.
func (s *Scanner) Scanned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanned
}

// Paths returns every leaf position in the order it was first seen.
func (s *Scanner) Paths() []Path {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Path, 0, len(s.order))
	for _, key := range s.order {
		p := *s.paths[key]
		p.Segments = slices.Clone(p.Segments)
		types := make(map[string]int, len(p.Types))
		for k, v := range p.Types {
			types[k] = v
		}
		p.Types = types
		out = append(out, p)
	}
	return out
}

// Schema returns the records' shape with every leaf replaced by its type
// name. Maps stay maps and lists become one-element lists whose element
// merges every item seen.
func (s *Scanner) Schema() any {
	return s.rebuild(func(p *Path) any { return p.Schema() })
}

// Prototype returns the records' shape with every leaf replaced by the last
// non-null value seen there.
func (s *Scanner) Prototype() any {
	return s.rebuild(func(p *Path) any { return p.Prototype })
}

// Reducer returns a funnel callable that scans each record and emits
// nothing. Read the result from the Scanner once the run is exhausted.
func (s *Scanner) Reducer() funnel.Func {
	return func(_ context.Context, args funnel.Args, kwargs funnel.Kwargs) (any, error) {
		switch {
		case kwargs != nil:
			s.Scan(map[string]any(kwargs))
		case len(args) == 1:
			s.Scan(args[0])
		default:
			return nil, errors.InvalidArgument(fmt.Sprintf("expected one record, got %d positional arguments", len(args)))
		}
		return nil, nil
	}
}

func (s *Scanner) rebuild(extract func(*Path) any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return map[string]any{}
	}
	root := &node{}
	for _, key := range s.order {
		p := s.paths[key]
		root.insert(p, extract(p), s.log)
	}
	return root.render()
}

// flatten calls leaf for every scalar position in v.
func flatten(v any, trail []Segment, leaf func([]Segment, any)) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			flatten(t[k], append(trail, Segment{Key: k}), leaf)
		}
		return
	case []any:
		for _, child := range t {
			flatten(child, append(trail, Segment{Elem: true}), leaf)
		}
		return
	case nil, string, bool, float64, int, []byte:
		leaf(trail, v)
		return
	}

	// Other maps keyed by strings and other slices are containers too.
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		slices.Sort(keys)
		for _, k := range keys {
			child := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()
			flatten(child, append(trail, Segment{Key: k}), leaf)
		}
	case rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			flatten(rv.Index(i).Interface(), append(trail, Segment{Elem: true}), leaf)
		}
	default:
		leaf(trail, v)
	}
}

func pathKey(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Elem {
			b.WriteByte(1)
			continue
		}
		b.WriteByte(0)
		b.WriteString(s.Key)
	}
	return b.String()
}

func typeName(v any) string {
	if v == nil {
		return Null
	}
	return fmt.Sprintf("%T", v)
}

// node is a position in a rebuilt record.
type node struct {
	keys     []string
	children map[string]*node
	elem     *node

	leaf  bool
	null  bool
	value any
}

func (n *node) nested() bool { return len(n.keys) > 0 || n.elem != nil }

func (n *node) step(s Segment) *node {
	if s.Elem {
		if n.elem == nil {
			n.elem = &node{}
		}
		return n.elem
	}
	if n.children == nil {
		n.children = make(map[string]*node)
	}
	child, ok := n.children[s.Key]
	if !ok {
		child = &node{}
		n.children[s.Key] = child
		n.keys = append(n.keys, s.Key)
	}
	return child
}

// insert places v at p. A position seen both nested and as a value keeps
// the nested form; a non-null value there is reported.
func (n *node) insert(p *Path, v any, log *logger.Logger) {
	cur := n
	for i, s := range p.Segments {
		if cur.leaf {
			if !cur.null {
				at := Path{Segments: p.Segments[:i]}
				log.Warn("position is sometimes nested, sometimes a value", logger.Fields(logger.FieldPath, at.String()))
			}
			cur.leaf, cur.null, cur.value = false, false, nil
		}
		cur = cur.step(s)
	}

	if cur.nested() {
		if p.Prototype != nil {
			log.Warn("position is sometimes nested, sometimes a value", logger.Fields(logger.FieldPath, p.String()))
		}
		return
	}
	cur.leaf = true
	cur.null = p.Prototype == nil
	cur.value = v
}

func (n *node) render() any {
	switch {
	case len(n.keys) > 0:
		out := make(map[string]any, len(n.keys))
		for _, k := range n.keys {
			out[k] = n.children[k].render()
		}
		return out
	case n.elem != nil:
		return []any{n.elem.render()}
	default:
		return n.value
	}
}
