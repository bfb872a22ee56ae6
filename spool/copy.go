package spool

import (
	"context"
	"io"

	"github.com/advdv/bbody/paged"
	"github.com/cockroachdb/errors"
)

// copyContext copies r to w through one pooled page, checking ctx before every chunk.
func copyContext(ctx context.Context, w io.Writer, r io.Reader, pool paged.Pool) (written int64, err error) {
	page := pool.Get()
	defer pool.Put(page)

	for {
		if err = ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := r.Read(page)
		if n > 0 {
			m, werr := w.Write(page[:n])
			written += int64(m)
			if werr != nil {
				return written, errors.Wrap(werr, "write")
			}
			if m < n {
				return written, io.ErrShortWrite
			}
		}

		if errors.Is(rerr, io.EOF) {
			return written, nil
		}
		if rerr != nil {
			return written, errors.Wrap(rerr, "read")
		}
	}
}
