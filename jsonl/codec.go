package jsonl

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/kbukum/funnel/errors"
)

// Compression is the on-disk encoding of a File.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

// CompressionFor returns the compression implied by path's last extension.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// Encode serializes v as a single JSON line without the trailing newline.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.InvalidRecord(0, err)
	}
	return data, nil
}

// Decode parses one JSON line.
func Decode(line []byte) (any, error) {
	v, err := decode(line)
	if err != nil {
		return nil, errors.InvalidRecord(0, err)
	}
	return v, nil
}

func decode(line []byte) (any, error) {
	var v any
	if err := json.Unmarshal(bytes.TrimSpace(line), &v); err != nil {
		return nil, err
	}
	return v, nil
}
