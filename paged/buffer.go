package paged

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

// ErrClosed is returned when using a buffer after Close.
var ErrClosed = errors.New("paged: buffer is closed")

// Buffer is an append-only byte buffer built from pool pages. Only the last page is ever partially filled. A Buffer
// is not safe for concurrent use.
type Buffer struct {
	pool   Pool
	pages  [][]byte
	fill   int // bytes used in the last page
	length int
	closed bool
}

// NewBuffer inits an empty buffer renting pages from pool. A nil pool selects the DefaultPool.
func NewBuffer(pool Pool) *Buffer {
	if pool == nil {
		pool = DefaultPool
	}

	return &Buffer{pool: pool}
}

// Len returns the number of bytes held.
func (b *Buffer) Len() int { return b.length }

// Write appends p, renting additional pages as the current one fills up. Every byte is copied exactly once.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}

	total := len(p)
	for len(p) > 0 {
		if len(b.pages) == 0 || b.fill == len(b.pages[len(b.pages)-1]) {
			b.pages = append(b.pages, b.pool.Get())
			b.fill = 0
		}

		last := b.pages[len(b.pages)-1]
		n := copy(last[b.fill:], p)
		b.fill += n
		b.length += n
		p = p[n:]
	}

	return total, nil
}

// ReadAt copies held bytes starting at off into p. It returns io.EOF when fewer than len(p) bytes are available.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if b.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, errors.New("paged: negative offset")
	}
	if off >= int64(b.length) {
		return 0, io.EOF
	}

	size := int64(b.pool.PageSize())
	idx, pos := int(off/size), int(off%size)

	var n int
	for n < len(p) && idx < len(b.pages) {
		page := b.pages[idx]
		if idx == len(b.pages)-1 {
			page = page[:b.fill]
		}

		n += copy(p[n:], page[pos:])
		idx, pos = idx+1, 0
	}

	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// MoveTo writes all pages, in order, to w. Afterwards every page is returned to the pool and the buffer is empty
// and ready for reuse, also when writing failed.
func (b *Buffer) MoveTo(w io.Writer) (int64, error) {
	return b.MoveToContext(context.Background(), w)
}

// MoveToContext is MoveTo that checks ctx between pages. On cancellation the pages are released, the content is
// lost.
func (b *Buffer) MoveToContext(ctx context.Context, w io.Writer) (written int64, err error) {
	if b.closed {
		return 0, ErrClosed
	}
	defer b.release()

	for i, page := range b.pages {
		if err = ctx.Err(); err != nil {
			return written, err
		}

		if i == len(b.pages)-1 {
			page = page[:b.fill]
		}

		n, werr := w.Write(page)
		written += int64(n)
		if werr != nil {
			return written, errors.Wrap(werr, "move page")
		}
	}

	return written, nil
}

// Reset returns all pages to the pool and empties the buffer.
func (b *Buffer) Reset() { b.release() }

// Close returns any remaining pages to the pool. It is safe to call more than once.
func (b *Buffer) Close() error {
	b.release()
	b.closed = true
	return nil
}

func (b *Buffer) release() {
	for i, page := range b.pages {
		b.pool.Put(page)
		b.pages[i] = nil
	}

	b.pages = b.pages[:0]
	b.fill, b.length = 0, 0
}
