package form

import (
	"context"
	"io"
	"net/url"

	"github.com/advdv/bbody/chunk"
	"github.com/advdv/bbody/paged"
	"github.com/cockroachdb/errors"
)

// Decoder decodes one form. It is not safe for concurrent use.
type Decoder struct {
	opts Options
	cur  Cursor
	acc  *Accumulator
}

// NewDecoder inits a decoder.
func NewDecoder(opts ...Option) *Decoder {
	o := buildOptions(opts)
	return &Decoder{opts: o, cur: NewCursor(o), acc: NewAccumulator(o.ValueCountLimit)}
}

// Write feeds the next chunk of encoded input.
func (d *Decoder) Write(p []byte) (int, error) {
	return d.cur.Feed(p, d.acc)
}

// Close completes the last pair. It must be called once the input is exhausted.
func (d *Decoder) Close() error {
	return d.cur.Finish(d.acc)
}

// Values returns the pairs decoded so far.
func (d *Decoder) Values() url.Values { return d.acc.Values() }

// Accumulator returns the accumulator the decoder appends to.
func (d *Decoder) Accumulator() *Accumulator { return d.acc }

// Decode decodes the form delivered by src.
func Decode(ctx context.Context, src chunk.Source, opts ...Option) (url.Values, error) {
	d := NewDecoder(opts...)
	for {
		b, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if _, err := d.Write(b); err != nil {
			return nil, err
		}
	}

	if err := d.Close(); err != nil {
		return nil, err
	}

	return d.Values(), nil
}

// Read decodes the form read from r. When a limit is violated and r is an io.Seeker, r is repositioned right after
// the violating byte so the caller can inspect the rest of the input.
func Read(ctx context.Context, r io.Reader, opts ...Option) (url.Values, error) {
	d := NewDecoder(opts...)

	buf := paged.DefaultPool.Get()
	defer paged.DefaultPool.Put(buf)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			if used, err := d.Write(buf[:n]); err != nil {
				return nil, seekBack(r, n-used, err)
			}
		}

		switch {
		case errors.Is(rerr, io.EOF):
			if err := d.Close(); err != nil {
				return nil, err
			}
			return d.Values(), nil
		case rerr != nil:
			return nil, errors.Wrap(rerr, "read form")
		}
	}
}

// Parse decodes s.
func Parse(s string, opts ...Option) (url.Values, error) {
	d := NewDecoder(opts...)
	if _, err := d.Write([]byte(s)); err != nil {
		return nil, err
	}
	if err := d.Close(); err != nil {
		return nil, err
	}
	return d.Values(), nil
}

func seekBack(r io.Reader, unused int, cause error) error {
	s, ok := r.(io.Seeker)
	if !ok || unused == 0 {
		return cause
	}

	if _, err := s.Seek(-int64(unused), io.SeekCurrent); err != nil {
		return errors.WithSecondaryError(cause, errors.Wrap(err, "reposition form source"))
	}

	return cause
}
