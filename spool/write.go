package spool

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

// WriteStream buffers written bytes in pooled memory and spills to a temporary file once the memory threshold would
// be exceeded. After a spill the memory tier accepts small writes again until it overflows once more. A WriteStream
// is not safe for concurrent use.
type WriteStream struct {
	t      tiers
	err    error
	closed bool
}

// NewWriteStream inits a write stream.
func NewWriteStream(opts ...Option) *WriteStream {
	return &WriteStream{t: newTiers(buildOptions(opts))}
}

// Write appends p. When the buffer limit would be exceeded all resources are released and the stream becomes
// unusable, the returned error matches bodyerr.ErrBufferLimitExceeded.
func (s *WriteStream) Write(p []byte) (int, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	if err := s.t.add(p); err != nil {
		s.fail(err)
		return 0, err
	}

	return len(p), nil
}

// Len returns the number of buffered bytes over both tiers.
func (s *WriteStream) Len() int64 { return s.t.length() }

// MemoryLen returns the number of bytes in the memory tier.
func (s *WriteStream) MemoryLen() int { return s.t.mem.Len() }

// DiskLen returns the number of bytes in the spill file.
func (s *WriteStream) DiskLen() int64 { return s.t.disk }

// TempFile returns the name of the spill file, or an empty string when nothing spilled.
func (s *WriteStream) TempFile() string { return s.t.fileName() }

// DrainTo copies the buffered bytes, disk tier first, to w. Both tiers are cleared afterwards and the spill file is
// deleted, leaving the stream ready for a new write cycle.
func (s *WriteStream) DrainTo(w io.Writer) (int64, error) {
	return s.DrainToContext(context.Background(), w)
}

// DrainToContext is DrainTo observing ctx between chunks. Any failure, including cancellation, disposes the stream.
func (s *WriteStream) DrainToContext(ctx context.Context, w io.Writer) (written int64, err error) {
	if err = s.usable(); err != nil {
		return 0, err
	}

	if s.t.file != nil {
		written, err = copyContext(ctx, w, io.NewSectionReader(s.t.file, 0, s.t.disk), s.t.opts.Pool)
		if err != nil {
			s.fail(err)
			return written, errors.Wrap(err, "drain disk tier")
		}
	}

	n, err := s.t.mem.MoveToContext(ctx, w)
	written += n
	if err != nil {
		s.fail(err)
		return written, errors.Wrap(err, "drain memory tier")
	}

	if err = s.t.release(); err != nil {
		s.fail(err)
		return written, err
	}

	return written, nil
}

// Reset discards all buffered bytes and deletes the spill file.
func (s *WriteStream) Reset() error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.t.release()
}

// Close returns the pooled pages and deletes the spill file. It is safe to call more than once.
func (s *WriteStream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	return s.t.close()
}

func (s *WriteStream) usable() error {
	switch {
	case s.err != nil:
		return s.err
	case s.closed:
		return ErrClosed
	default:
		return nil
	}
}

func (s *WriteStream) fail(err error) {
	s.err = err
	_ = s.Close() // cleanup errors are secondary to err
}

var _ io.Writer = &WriteStream{}
