package jsonl

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/logger"
	"github.com/kbukum/funnel/pipeline"
)

type flusher interface {
	Flush() error
}

// Writer appends records to a stream, one JSON document per line.
// It is not safe for concurrent use.
type Writer struct {
	bw *bufio.Writer
	// inner is the compressor between bw and the destination, if any.
	inner   io.Writer
	opts    options
	written int
	skipped int
}

// NewWriter returns a Writer on w. Output is buffered until Flush or Close.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	return newWriter(w, nil, applyOptions(opts))
}

func newWriter(w io.Writer, inner io.Writer, opts options) *Writer {
	return &Writer{bw: bufio.NewWriter(w), inner: inner, opts: opts}
}

// Append writes v as one line. A value that cannot be encoded fails with
// INVALID_RECORD unless invalid records are skipped.
func (w *Writer) Append(v any) error {
	data, err := Encode(v)
	if err != nil {
		if w.opts.skipInvalid {
			w.skipped++
			w.opts.log.Warn("skipping unserializable record", logger.MergeWithError(logger.Fields("type", fmt.Sprintf("%T", v)), err))
			return nil
		}
		return err
	}
	if _, err := w.bw.Write(data); err != nil {
		return errors.IO("write", "", err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return errors.IO("write", "", err)
	}
	w.written++
	return nil
}

// Extend appends every value of it and closes it. It returns the number of
// records written.
func (w *Writer) Extend(ctx context.Context, it pipeline.Iterator[any]) (int, error) {
	before := w.written
	err := pipeline.ForEach(ctx, pipeline.From(it), func(_ context.Context, v any) error {
		return w.Append(v)
	})
	return w.written - before, err
}

// Written returns the number of records written so far.
func (w *Writer) Written() int { return w.written }

// Skipped returns the number of records dropped as unserializable.
func (w *Writer) Skipped() int { return w.skipped }

// Flush pushes buffered records through to the destination.
func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return errors.IO("flush", "", err)
	}
	if f, ok := w.inner.(flusher); ok {
		if err := f.Flush(); err != nil {
			return errors.IO("flush", "", err)
		}
	}
	return nil
}

// Close flushes and finishes the compressed stream, if any. The destination
// itself is left open.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		return errors.IO("flush", "", err)
	}
	if c, ok := w.inner.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return errors.IO("close", "", err)
		}
	}
	return nil
}
