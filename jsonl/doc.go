// Package jsonl reads and writes newline-delimited JSON records.
//
// A File picks its compression from the path extension (.gz and .gzip for
// gzip, .zst and .zstd for zstd, plain otherwise) and switches between
// appending and reading on demand. Reader and Writer work on any stream.
//
// Records are decoded the way encoding/json decodes into an empty
// interface: objects become map[string]any, arrays []any and numbers
// float64.
//
// Reading hands out pipeline iterators so a file can feed a funnel
// directly:
//
//	f, err := jsonl.Open("records.jsonl.gz")
//	...
//	out, err := funnel.Collect(ctx, f.Lines(), decode, scan, cfg)
package jsonl
