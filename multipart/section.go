package multipart

import (
	"context"
	"io"

	"github.com/advdv/bbody/spool"
	"github.com/cockroachdb/errors"
)

// DefaultRewindThreshold is the memory threshold used by EnableRewind when no option overrides it.
const DefaultRewindThreshold = 30 * 1024

// Section is one part of a multipart body.
type Section struct {
	Header Header
	// Body reads the section content up to the next delimiter. It reports io.EOF at the delimiter, and once the
	// reader moved on to a later section.
	Body io.Reader

	offset int64
}

// Offset returns the position of the first body byte within the multipart input.
func (s *Section) Offset() int64 { return s.offset }

// ContentType returns the Content-Type header value.
func (s *Section) ContentType() string { return s.Header.Get("Content-Type") }

// ContentDisposition parses the Content-Disposition header.
func (s *Section) ContentDisposition() (ContentDisposition, error) {
	return ParseContentDisposition(s.Header.Get("Content-Disposition"))
}

// EnableRewind replaces Body with a seekable stream that buffers what it reads. The caller owns the returned stream
// and must close it to release its buffers.
func (s *Section) EnableRewind(opts ...spool.Option) *spool.ReadStream {
	if rs, ok := s.Body.(*spool.ReadStream); ok {
		return rs
	}

	rs := spool.NewReadStream(s.Body, append([]spool.Option{spool.WithMemoryThreshold(DefaultRewindThreshold)}, opts...)...)
	s.Body = rs

	return rs
}

// body reads the content of one section.
type body struct {
	r   *Reader
	gen int
	ctx context.Context //nolint:containedctx
}

func (b *body) Read(p []byte) (int, error) {
	r := b.r
	switch {
	case r.win.buf == nil:
		return 0, ErrReaderClosed
	case b.gen != r.gen || r.state != stateReadingBody:
		return 0, io.EOF
	case r.err != nil:
		return 0, r.err
	case len(p) == 0:
		return 0, nil
	}

	n, err := r.advance(b.ctx, p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, r.fail(err)
	}

	return n, err
}
