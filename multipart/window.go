package multipart

import (
	"context"
	"io"

	"github.com/advdv/bbody/chunk"
	"github.com/advdv/bbody/paged"
	"github.com/cockroachdb/errors"
)

// window is the sliding view over the source that the scanner searches. Unread bytes are buf[r:w]. Chunks larger
// than the free space are kept in pending and copied in as room becomes available.
type window struct {
	pool    paged.Pool
	pooled  bool
	buf     []byte
	r, w    int
	pending []byte
	eof     bool
	offset  int64
}

func newWindow(pool paged.Pool, minSize int) *window {
	if pool.PageSize() >= minSize {
		return &window{pool: pool, pooled: true, buf: pool.Get()}
	}
	return &window{pool: pool, buf: make([]byte, minSize)}
}

// bytes returns the unread bytes.
func (w *window) bytes() []byte { return w.buf[w.r:w.w] }

// discard consumes n unread bytes.
func (w *window) discard(n int) {
	w.r += n
	w.offset += int64(n)
}

// exhausted reports whether no bytes are left anywhere.
func (w *window) exhausted() bool { return w.r == w.w && len(w.pending) == 0 && w.eof }

// fill compacts the window and appends more bytes. It returns io.EOF when the source has no more bytes.
func (w *window) fill(ctx context.Context, src chunk.Source) error {
	if w.r > 0 {
		w.w = copy(w.buf, w.buf[w.r:w.w])
		w.r = 0
	}
	if w.w == len(w.buf) {
		return errors.New("multipart: scan window is full")
	}

	for len(w.pending) == 0 {
		if w.eof {
			return io.EOF
		}

		b, err := src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			w.eof = true
			return io.EOF
		case err != nil:
			return err
		}
		w.pending = b
	}

	n := copy(w.buf[w.w:], w.pending)
	w.pending = w.pending[n:]
	w.w += n

	return nil
}

// ensure fills until at least n unread bytes are available. Running out of input is not an error, callers inspect
// the returned length.
func (w *window) ensure(ctx context.Context, src chunk.Source, n int) (int, error) {
	for w.w-w.r < n {
		if err := w.fill(ctx, src); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return w.w - w.r, err
		}
	}
	return w.w - w.r, nil
}

func (w *window) release() {
	if w.buf == nil {
		return
	}
	if w.pooled {
		w.pool.Put(w.buf)
	}
	w.buf, w.pending = nil, nil
	w.r, w.w = 0, 0
}
