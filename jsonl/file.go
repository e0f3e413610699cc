package jsonl

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/kbukum/funnel/errors"
	"github.com/kbukum/funnel/pipeline"
)

type mode int

const (
	modeClosed mode = iota
	modeAppend
	modeRead
)

// File is a JSONL file on disk. It is opened for appending and reopens
// itself for reading (from the start) or appending as methods require.
// Reading to the end closes it. A File is not safe for concurrent use.
type File struct {
	path        string
	compression Compression
	opts        options
	created     bool

	mode mode
	fh   *os.File
	w    *Writer
	r    *Reader
	// rc is the decompressor of the current read session, if any.
	rc io.Closer

	// Counters of finished sessions.
	written int
	read    int
}

// Open opens path for appending, creating it if it does not exist.
func Open(path string, opts ...Option) (*File, error) {
	_, err := os.Stat(path)
	f := &File{
		path:        path,
		compression: CompressionFor(path),
		opts:        applyOptions(opts),
		created:     stderrors.Is(err, os.ErrNotExist),
	}
	if err := f.openAppend(); err != nil {
		return nil, err
	}
	return f, nil
}

// OpenRead opens an existing file for reading. Unlike Open it never creates
// the file and does not need write permission until something is appended.
func OpenRead(path string, opts ...Option) (*File, error) {
	f := &File{
		path:        path,
		compression: CompressionFor(path),
		opts:        applyOptions(opts),
	}
	if err := f.openRead(); err != nil {
		return nil, err
	}
	return f, nil
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// New reports whether Open created the file.
func (f *File) New() bool { return f.created }

// Compression returns the compression chosen from the extension.
func (f *File) Compression() Compression { return f.compression }

// Closed reports whether the file is currently closed.
func (f *File) Closed() bool { return f.mode == modeClosed }

// Written returns the number of records appended through f.
func (f *File) Written() int {
	if f.w != nil {
		return f.written + f.w.Written()
	}
	return f.written
}

// Count returns the number of records read through f.
func (f *File) Count() int {
	if f.r != nil {
		return f.read + f.r.Count()
	}
	return f.read
}

// Append adds one record to the end of the file.
func (f *File) Append(v any) error {
	if err := f.openAppend(); err != nil {
		return err
	}
	w, err := f.writer()
	if err != nil {
		return err
	}
	return f.wrap(w.Append(v))
}

// Extend appends every value of it and closes it.
func (f *File) Extend(ctx context.Context, it pipeline.Iterator[any]) (int, error) {
	if err := f.openAppend(); err != nil {
		_ = it.Close()
		return 0, err
	}
	w, err := f.writer()
	if err != nil {
		_ = it.Close()
		return 0, err
	}
	n, err := w.Extend(ctx, it)
	return n, f.wrap(err)
}

// Flush pushes appended records to disk.
func (f *File) Flush() error {
	if f.w == nil {
		return nil
	}
	return f.wrap(f.w.Flush())
}

// Stream returns the file's records, decoded. The file is closed when the
// iterator is exhausted or closed.
func (f *File) Stream() pipeline.Iterator[any] {
	if err := f.openRead(); err != nil {
		return pipeline.Failed[any](err)
	}
	return &sessionIter[any]{it: f.r.Stream(), f: f}
}

// Lines returns the file's raw lines. The file is closed when the iterator
// is exhausted or closed.
func (f *File) Lines() pipeline.Iterator[[]byte] {
	if err := f.openRead(); err != nil {
		return pipeline.Failed[[]byte](err)
	}
	return &sessionIter[[]byte]{it: f.r.Lines(), f: f}
}

// ReadAll reads every record into memory and closes the file.
func (f *File) ReadAll(ctx context.Context) ([]any, error) {
	if err := f.openRead(); err != nil {
		return nil, err
	}
	out, err := f.r.ReadAll(ctx)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return out, f.wrap(err)
}

// Close finishes the current session. It is safe to call more than once.
func (f *File) Close() error {
	return f.wrap(f.closeSession())
}

// String reports the file's state.
func (f *File) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- JSONL FILE : %s ---\n", f.path)
	fmt.Fprintf(&b, "newly created  : %t\n", f.created)
	fmt.Fprintf(&b, "compression    : %s\n", f.compression)
	fmt.Fprintf(&b, "currently open : %t\n", !f.Closed())
	fmt.Fprintf(&b, "lines written  : %d\n", f.Written())
	fmt.Fprintf(&b, "lines read     : %d\n", f.Count())
	return b.String()
}

func (f *File) openAppend() error {
	if f.mode == modeAppend {
		return nil
	}
	if err := f.closeSession(); err != nil {
		return err
	}
	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.IO("open", f.path, err)
	}
	f.fh = fh
	f.mode = modeAppend
	return nil
}

// writer starts the compressed stream on first use, so a session that
// appends nothing leaves the file untouched.
func (f *File) writer() (*Writer, error) {
	if f.w != nil {
		return f.w, nil
	}
	switch f.compression {
	case Gzip:
		gz := gzip.NewWriter(f.fh)
		f.w = newWriter(gz, gz, f.opts)
	case Zstd:
		enc, err := zstd.NewWriter(f.fh)
		if err != nil {
			return nil, errors.IO("open", f.path, err)
		}
		f.w = newWriter(enc, enc, f.opts)
	default:
		f.w = newWriter(f.fh, nil, f.opts)
	}
	return f.w, nil
}

func (f *File) openRead() error {
	if f.mode == modeRead {
		return nil
	}
	if err := f.closeSession(); err != nil {
		return err
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return errors.IO("open", f.path, err)
	}
	info, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return errors.IO("open", f.path, err)
	}

	var src io.Reader = fh
	if info.Size() > 0 {
		switch f.compression {
		case Gzip:
			gz, err := gzip.NewReader(fh)
			if err != nil {
				_ = fh.Close()
				return errors.IO("open", f.path, err)
			}
			src, f.rc = gz, gz
		case Zstd:
			dec, err := zstd.NewReader(fh)
			if err != nil {
				_ = fh.Close()
				return errors.IO("open", f.path, err)
			}
			rc := dec.IOReadCloser()
			src, f.rc = rc, rc
		}
	}

	f.fh = fh
	f.r = newReader(src, f.opts)
	f.mode = modeRead
	return nil
}

func (f *File) closeSession() error {
	var errs []error
	switch f.mode {
	case modeAppend:
		if f.w != nil {
			errs = append(errs, f.w.Close())
			f.written += f.w.Written()
			f.w = nil
		}
	case modeRead:
		f.read += f.r.Count()
		f.r = nil
		if f.rc != nil {
			errs = append(errs, f.rc.Close())
			f.rc = nil
		}
	default:
		return nil
	}
	if err := f.fh.Close(); err != nil {
		errs = append(errs, errors.IO("close", f.path, err))
	}
	f.fh = nil
	f.mode = modeClosed
	return stderrors.Join(errs...)
}

// wrap attaches the path to IO errors raised by the stream helpers.
func (f *File) wrap(err error) error {
	if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.ErrCodeIO {
		if _, set := appErr.Details["path"]; !set {
			return appErr.WithDetail("path", f.path)
		}
	}
	return err
}

// sessionIter closes its File when the wrapped iterator ends.
type sessionIter[T any] struct {
	it   pipeline.Iterator[T]
	f    *File
	done bool
}

func (it *sessionIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.done {
		var zero T
		return zero, false, nil
	}
	v, ok, err := it.it.Next(ctx)
	if !ok || err != nil {
		if cerr := it.Close(); err == nil {
			err = cerr
		}
	}
	return v, ok, err
}

func (it *sessionIter[T]) Close() error {
	if it.done {
		return nil
	}
	it.done = true
	return it.f.Close()
}
