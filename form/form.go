// Package form decodes application/x-www-form-urlencoded bodies incrementally. Input is fed to a [Cursor] chunk by
// chunk, completed pairs are collected by an [Accumulator], and every limit is enforced on the raw encoded bytes as
// they arrive.
package form

import (
	"net/url"

	"github.com/advdv/bbody/bodyerr"
	"golang.org/x/text/encoding"
)

const (
	// DefaultValueCountLimit is the most key/value pairs a form may carry.
	DefaultValueCountLimit = 1024
	// DefaultKeyLengthLimit is the longest encoded key accepted.
	DefaultKeyLengthLimit = 2048
	// DefaultValueLengthLimit is the longest encoded value accepted.
	DefaultValueLengthLimit = 4 * 1024 * 1024
)

// Options configure decoding. A limit of zero or less disables it.
type Options struct {
	ValueCountLimit  int
	KeyLengthLimit   int
	ValueLengthLimit int
	// Encoding interprets the decoded bytes. Nil selects UTF-8 with replacement of invalid sequences.
	Encoding encoding.Encoding
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		ValueCountLimit:  DefaultValueCountLimit,
		KeyLengthLimit:   DefaultKeyLengthLimit,
		ValueLengthLimit: DefaultValueLengthLimit,
	}
}

// Option configures the Options.
type Option func(*Options)

// WithValueCountLimit sets the pair count limit.
func WithValueCountLimit(n int) Option { return func(o *Options) { o.ValueCountLimit = n } }

// WithKeyLengthLimit sets the key length limit.
func WithKeyLengthLimit(n int) Option { return func(o *Options) { o.KeyLengthLimit = n } }

// WithValueLengthLimit sets the value length limit.
func WithValueLengthLimit(n int) Option { return func(o *Options) { o.ValueLengthLimit = n } }

// WithEncoding sets the text encoding of decoded bytes.
func WithEncoding(enc encoding.Encoding) Option { return func(o *Options) { o.Encoding = enc } }

// WithOptions replaces all options at once.
func WithOptions(src Options) Option { return func(o *Options) { *o = src } }

// NoLimits disables every limit.
func NoLimits() Option {
	return func(o *Options) {
		o.ValueCountLimit, o.KeyLengthLimit, o.ValueLengthLimit = 0, 0, 0
	}
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Accumulator collects decoded pairs. Values of the same key are kept in append order.
type Accumulator struct {
	limit  int
	values url.Values
	keys   []string
	count  int
}

// NewAccumulator inits an accumulator that accepts at most limit pairs. A limit of zero or less is unlimited.
func NewAccumulator(limit int) *Accumulator {
	return &Accumulator{limit: limit, values: url.Values{}}
}

// Append adds one pair.
func (a *Accumulator) Append(key, value string) error {
	if a.limit > 0 && a.count >= a.limit {
		return bodyerr.ValueCount(a.limit)
	}

	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = append(a.values[key], value)
	a.count++

	return nil
}

// Values returns the collected pairs.
func (a *Accumulator) Values() url.Values { return a.values }

// Keys returns the distinct keys in the order they were first seen.
func (a *Accumulator) Keys() []string { return a.keys }

// Count returns the number of pairs appended.
func (a *Accumulator) Count() int { return a.count }
