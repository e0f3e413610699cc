// Package datascan infers the shape of nested records.
//
// A Scanner flattens every record into leaf positions such as a.b[].c and
// counts the types seen at each. From those it rebuilds a schema (type names
// at the leaves) or a prototype (a sample value at the leaves):
//
//	s := datascan.New()
//	s.Scan(map[string]any{"a": []any{map[string]any{"b": 1.0}}})
//	s.Schema()    // map[a:[map[b:float64]]]
//	s.Prototype() // map[a:[map[b:1]]]
//
// Scanner.Reducer plugs a scanner into a funnel as a stateful reducer.
package datascan
