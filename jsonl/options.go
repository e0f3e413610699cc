package jsonl

import "github.com/kbukum/funnel/logger"

// Option configures a Reader, Writer or File.
type Option func(*options)

type options struct {
	skipInvalid bool
	log         *logger.Logger
}

// WithSkipInvalid drops records that cannot be encoded or decoded, logging a
// warning for each, instead of failing.
func WithSkipInvalid(skip bool) Option {
	return func(o *options) { o.skipInvalid = skip }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Get("jsonl")
	}
	return o
}
