package jsonl

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/logger"
	"github.com/kbukum/funnel/pipeline"
)

// readAllWarnAt is the record count at which ReadAll suggests streaming.
const readAllWarnAt = 10000

// Reader reads records from a stream, one JSON document per line. Blank
// lines are ignored. A Reader is single pass: Lines, Stream and ReadAll all
// consume the same underlying stream.
type Reader struct {
	br    *bufio.Reader
	opts  options
	line  int
	count int
	// err is a read error held back until the line read with it is consumed.
	err error
}

// NewReader returns a Reader on r.
func NewReader(r io.Reader, opts ...Option) *Reader {
	return newReader(r, applyOptions(opts))
}

func newReader(r io.Reader, opts options) *Reader {
	return &Reader{br: bufio.NewReader(r), opts: opts}
}

// Count returns the number of records handed out so far.
func (r *Reader) Count() int { return r.count }

// Lines returns the remaining raw lines, trimmed. Decoding is left to the
// caller, which lets a funnel decode lines in parallel.
func (r *Reader) Lines() pipeline.Iterator[[]byte] {
	return &lineIter{r: r}
}

// Stream returns the remaining records, decoded.
func (r *Reader) Stream() pipeline.Iterator[any] {
	return &recordIter{r: r}
}

// ReadAll decodes every remaining record into memory.
func (r *Reader) ReadAll(ctx context.Context) ([]any, error) {
	var out []any
	it := r.Stream()
	for {
		v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
		if len(out) == readAllWarnAt {
			r.opts.log.Warn("read many records into memory, consider streaming instead", logger.Fields("records", readAllWarnAt))
		}
	}
}

// next returns the next non-blank line.
func (r *Reader) next(ctx context.Context) ([]byte, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if r.err != nil {
			return nil, false, r.err
		}

		raw, err := r.br.ReadBytes('\n')
		if err != nil && !stderrors.Is(err, io.EOF) {
			r.err = errors.IO("read", "", err)
		}
		if len(raw) > 0 {
			r.line++
			if line := bytes.TrimSpace(raw); len(line) > 0 {
				return line, true, nil
			}
		}
		if stderrors.Is(err, io.EOF) {
			return nil, false, nil
		}
	}
}

type lineIter struct {
	r *Reader
}

func (it *lineIter) Next(ctx context.Context) ([]byte, bool, error) {
	line, ok, err := it.r.next(ctx)
	if ok {
		it.r.count++
	}
	return line, ok, err
}

func (it *lineIter) Close() error { return nil }

type recordIter struct {
	r *Reader
}

func (it *recordIter) Next(ctx context.Context) (any, bool, error) {
	for {
		line, ok, err := it.r.next(ctx)
		if !ok || err != nil {
			return nil, ok, err
		}
		v, err := decode(line)
		if err != nil {
			if it.r.opts.skipInvalid {
				it.r.opts.log.Warn("skipping undecodable record", logger.MergeWithError(logger.Fields("line", it.r.line), err))
				continue
			}
			return nil, false, errors.InvalidRecord(it.r.line, err)
		}
		it.r.count++
		return v, true, nil
	}
}

func (it *recordIter) Close() error { return nil }
