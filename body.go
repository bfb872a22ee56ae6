package bbody

import (
	"io"
	"net/http"

	"github.com/advdv/bbody/spool"
	"github.com/cockroachdb/errors"
)

// BufferedBody is a request body that buffers what is read from the client so it can be read again. Handlers may
// call Close freely, the buffers are only released by Release.
type BufferedBody struct {
	*spool.ReadStream
}

// Close is a no-op so handlers that close the body keep it rewindable for later readers.
func (b *BufferedBody) Close() error { return nil }

// Release deletes the buffers. The original request body is left for the server to close.
func (b *BufferedBody) Release() error {
	return b.ReadStream.Close()
}

// Rewind positions the body at its start again.
func (b *BufferedBody) Rewind() error {
	_, err := b.Seek(0, io.SeekStart)
	return err
}

// BufferBody replaces r.Body with a BufferedBody, or returns the one installed earlier. The boolean reports whether
// the body was installed by this call, in which case the caller must Release it.
func BufferBody(r *http.Request, opts Options) (*BufferedBody, bool) {
	if bb, ok := r.Body.(*BufferedBody); ok {
		return bb, false
	}

	body := r.Body
	if body == nil {
		body = http.NoBody
	}

	bb := &BufferedBody{spool.NewReadStream(body, spool.WithOptions(opts.spoolOptions()))}
	r.Body = bb

	return bb, true
}

// Rewind positions a buffered request body at its start. It fails when the body was not buffered.
func Rewind(r *http.Request) error {
	bb, ok := r.Body.(*BufferedBody)
	if !ok {
		return errors.New("bbody: request body is not buffered")
	}
	return bb.Rewind()
}

// EnableBuffering returns middleware that buffers the request body of every request, so any number of handlers can
// read it. The buffers are released after the wrapped handler returns.
func EnableBuffering(opts Options, logs Logger) Middleware {
	if opts.OnSpill == nil && logs != nil {
		opts.OnSpill = logs.LogSpill
	}

	return func(next BareHandler) BareHandler {
		return BareHandlerFunc(func(w ResponseWriter, r *http.Request) error {
			bb, installed := BufferBody(r, opts)
			if installed {
				defer func() {
					if rerr := bb.Release(); rerr != nil && logs != nil {
						logs.LogUnhandledServeError(errors.Wrap(rerr, "release buffered body"))
					}
				}()
			}

			return next.ServeBareBBody(w, r)
		})
	}
}
