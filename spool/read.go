package spool

import (
	"io"

	"github.com/cockroachdb/errors"
)

// ReadStream wraps a forward-only source and buffers every byte read from it, using the same memory and disk tiers
// as [WriteStream]. Seeking to a position that was already read replays the buffered bytes without touching the
// source. The wrapped source is never closed by the stream. A ReadStream is not safe for concurrent use.
type ReadStream struct {
	src    io.Reader
	t      tiers
	pos    int64
	eof    bool
	err    error
	closed bool
}

// NewReadStream wraps src.
func NewReadStream(src io.Reader, opts ...Option) *ReadStream {
	return &ReadStream{src: src, t: newTiers(buildOptions(opts))}
}

// Read replays buffered bytes at the current position, or reads and buffers the next bytes from the source once the
// buffered frontier is reached.
func (s *ReadStream) Read(p []byte) (int, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	if s.pos < s.t.length() {
		n, err := s.t.readAt(p, s.pos)
		s.pos += int64(n)
		if err != nil {
			s.fail(err)
		}
		return n, err
	}

	if s.pos > s.t.length() || s.eof {
		return 0, io.EOF
	}

	n, err := s.pull(p)
	s.pos += int64(n)

	return n, err
}

// pull reads once from the source into p and appends the bytes to the spool.
func (s *ReadStream) pull(p []byte) (int, error) {
	n, err := s.src.Read(p)
	if n > 0 {
		if aerr := s.t.add(p[:n]); aerr != nil {
			s.fail(aerr)
			return 0, aerr
		}
	}

	switch {
	case errors.Is(err, io.EOF):
		s.eof = true
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	case err != nil:
		return n, errors.Wrap(err, "read source")
	default:
		return n, nil
	}
}

// fill pulls from the source until at least 'end' bytes are buffered or the source is exhausted.
func (s *ReadStream) fill(end int64) error {
	if s.t.length() >= end || s.eof {
		return nil
	}

	page := s.t.opts.Pool.Get()
	defer s.t.opts.Pool.Put(page)

	for s.t.length() < end && !s.eof {
		if _, err := s.pull(page); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}

	return nil
}

// Seek sets the position for the next Read. Positions within the buffered frontier are replayed, positions past it
// first buffer the source up to that point. [io.SeekEnd] buffers the rest of the source.
func (s *ReadStream) Seek(offset int64, whence int) (int64, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		if err := s.fill(1<<63 - 1); err != nil {
			return s.pos, err
		}
		abs = s.t.length() + offset
	default:
		return s.pos, errors.Newf("spool: invalid whence %d", whence)
	}

	if abs < 0 {
		return s.pos, errors.New("spool: negative position")
	}

	if err := s.fill(abs); err != nil {
		return s.pos, err
	}

	s.pos = abs

	return abs, nil
}

// ReadAt reads buffered bytes at off without moving the read position, buffering more of the source when needed.
func (s *ReadStream) ReadAt(p []byte, off int64) (int, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, errors.New("spool: negative offset")
	}

	if err := s.fill(off + int64(len(p))); err != nil {
		return 0, err
	}
	if off >= s.t.length() {
		return 0, io.EOF
	}

	n, err := s.t.readAt(p, off)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// Buffered returns the number of source bytes buffered so far.
func (s *ReadStream) Buffered() int64 { return s.t.length() }

// Position returns the current read position.
func (s *ReadStream) Position() int64 { return s.pos }

// TempFile returns the name of the spill file, or an empty string when nothing spilled.
func (s *ReadStream) TempFile() string { return s.t.fileName() }

// Source returns the wrapped source.
func (s *ReadStream) Source() io.Reader { return s.src }

// Close releases the pooled pages and deletes the spill file. The wrapped source stays open and is owned by the
// caller again. It is safe to call more than once.
func (s *ReadStream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	return s.t.close()
}

func (s *ReadStream) usable() error {
	switch {
	case s.err != nil:
		return s.err
	case s.closed:
		return ErrClosed
	default:
		return nil
	}
}

func (s *ReadStream) fail(err error) {
	s.err = err
	_ = s.Close() // cleanup errors are secondary to err
}

var (
	_ io.ReadSeekCloser = &ReadStream{}
	_ io.ReaderAt       = &ReadStream{}
)
