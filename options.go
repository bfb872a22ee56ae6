package bbody

import (
	"github.com/advdv/bbody/form"
	"github.com/advdv/bbody/multipart"
	"github.com/advdv/bbody/paged"
	"github.com/advdv/bbody/spool"
	"golang.org/x/text/encoding"
)

const (
	// DefaultBufferLimit caps a buffered request body over memory and disk.
	DefaultBufferLimit = 128 << 20
	// DefaultMultipartBodyLengthLimit caps the body of a single multipart section.
	DefaultMultipartBodyLengthLimit = 128 << 20
)

// Options hold the limits and spooling settings for reading request bodies. A zero limit disables it, use
// DefaultOptions as a starting point.
type Options struct {
	MemoryThreshold int
	BufferLimit     int64
	TempDir         spool.TempDirFunc
	Pool            paged.Pool
	OnSpill         func(file string)

	BoundaryLengthLimit      int
	HeadersCountLimit        int
	HeadersLengthLimit       int
	MultipartBodyLengthLimit int64

	ValueCountLimit  int
	KeyLengthLimit   int
	ValueLengthLimit int
	Encoding         encoding.Encoding
}

// DefaultOptions returns the defaults for reading request bodies.
func DefaultOptions() Options {
	return Options{
		MemoryThreshold:          spool.DefaultMemoryThreshold,
		BufferLimit:              DefaultBufferLimit,
		BoundaryLengthLimit:      multipart.DefaultBoundaryLengthLimit,
		HeadersCountLimit:        multipart.DefaultHeadersCountLimit,
		HeadersLengthLimit:       multipart.DefaultHeadersLengthLimit,
		MultipartBodyLengthLimit: DefaultMultipartBodyLengthLimit,
		ValueCountLimit:          form.DefaultValueCountLimit,
		KeyLengthLimit:           form.DefaultKeyLengthLimit,
		ValueLengthLimit:         form.DefaultValueLengthLimit,
	}
}

func (o Options) spoolOptions() spool.Options {
	return spool.Options{
		MemoryThreshold: o.MemoryThreshold,
		BufferLimit:     o.BufferLimit,
		TempDir:         o.TempDir,
		Pool:            o.Pool,
		OnSpill:         o.OnSpill,
	}
}

func (o Options) formOptions() form.Options {
	return form.Options{
		ValueCountLimit:  o.ValueCountLimit,
		KeyLengthLimit:   o.KeyLengthLimit,
		ValueLengthLimit: o.ValueLengthLimit,
		Encoding:         o.Encoding,
	}
}

func (o Options) multipartOptions() []multipart.Option {
	return []multipart.Option{
		multipart.WithHeadersCountLimit(o.HeadersCountLimit),
		multipart.WithHeadersLengthLimit(o.HeadersLengthLimit),
		multipart.WithBodyLengthLimit(o.MultipartBodyLengthLimit),
		multipart.WithPool(o.Pool),
	}
}
