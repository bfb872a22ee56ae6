// Package chunk describes the upstream side of body ingestion: a forward-only pull source that delivers bytes in
// chunks of unspecified size. Parsers are written once against Source; the blocking and the suspending way of
// waiting for the next chunk are two implementations of it.
package chunk

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

// DefaultSize is the read size used by FromReader when none is given.
const DefaultSize = 4096

// Source produces the next chunk of input. It returns io.EOF (and no bytes) once the input is exhausted. The
// returned slice is only valid until the next call.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// SourceFunc allows casting a function to implement [Source].
type SourceFunc func(ctx context.Context) ([]byte, error)

// Next implements the [Source] interface.
func (f SourceFunc) Next(ctx context.Context) ([]byte, error) { return f(ctx) }

// readerSource reads blocking from an io.Reader.
type readerSource struct {
	r   io.Reader
	buf []byte
}

// FromReader returns a Source that performs blocking reads of up to size bytes from r. Cancellation is observed
// before every read.
func FromReader(r io.Reader, size int) Source {
	if size <= 0 {
		size = DefaultSize
	}

	return &readerSource{r: r, buf: make([]byte, size)}
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.r.Read(s.buf)
		if n > 0 {
			return s.buf[:n], nil
		}

		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case err != nil:
			return nil, errors.Wrap(err, "read chunk")
		}
	}
}

// FromChan returns a Source that suspends until a chunk arrives on ch or ctx is done. A closed channel signals the
// end of input.
func FromChan(ch <-chan []byte) Source {
	return SourceFunc(func(ctx context.Context) ([]byte, error) {
		for {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case b, ok := <-ch:
				if !ok {
					return nil, io.EOF
				}
				if len(b) > 0 {
					return b, nil
				}
			}
		}
	})
}

// FromBytes returns a Source delivering b in chunks of at most size bytes. A size of zero or less delivers b whole.
func FromBytes(b []byte, size int) Source {
	if size <= 0 {
		size = len(b)
	}

	return SourceFunc(func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(b) == 0 {
			return nil, io.EOF
		}

		n := min(size, len(b))
		c := b[:n]
		b = b[n:]

		return c, nil
	})
}

// Reader adapts a Source back into an io.Reader bound to ctx.
func Reader(ctx context.Context, src Source) io.Reader {
	return &sourceReader{ctx: ctx, src: src}
}

type sourceReader struct {
	ctx  context.Context //nolint:containedctx
	src  Source
	rest []byte
}

func (r *sourceReader) Read(p []byte) (int, error) {
	if len(r.rest) == 0 {
		b, err := r.src.Next(r.ctx)
		if err != nil {
			return 0, err
		}
		r.rest = b
	}

	n := copy(p, r.rest)
	r.rest = r.rest[n:]

	return n, nil
}
