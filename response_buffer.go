package bbody

import (
	"net/http"

	"github.com/advdv/bbody/spool"
	"github.com/cockroachdb/errors"
)

// ErrBufferFull is returned when the write is larger than can be buffered.
var ErrBufferFull = errors.New("bbody: buffer is full")

// ResponseOption configures the spool behind a ResponseBuffer.
type ResponseOption = spool.Option

// ResponseBuffer is a http.ResponseWriter that spools the body. Small responses stay in pooled memory, larger ones
// overflow to a temporary file, so a handler can produce a big response and still have it replaced on error.
type ResponseBuffer struct {
	resp    http.ResponseWriter
	opts    []spool.Option
	limit   int
	header  http.Header
	status  int
	wrote   bool
	flushed bool
	body    *spool.WriteStream
}

// NewResponseWriter inits a spooled response writer around resp. A limit of zero or less means the body size is not
// limited.
func NewResponseWriter(resp http.ResponseWriter, limit int, opts ...ResponseOption) *ResponseBuffer {
	return &ResponseBuffer{
		resp:   resp,
		opts:   opts,
		limit:  limit,
		header: http.Header{},
		status: http.StatusOK,
		body:   spool.NewWriteStream(opts...),
	}
}

// Header returns the headers that will be sent when the buffer is first flushed.
func (w *ResponseBuffer) Header() http.Header {
	return w.header
}

// Write appends to the spooled body. It fails with ErrBufferFull when the limit would be exceeded, nothing of p is
// written in that case.
func (w *ResponseBuffer) Write(p []byte) (int, error) {
	if w.limit > 0 && w.body.Len()+int64(len(p)) > int64(w.limit) {
		return 0, ErrBufferFull
	}

	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}

	n, err := w.body.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "spool response body")
	}

	return n, nil
}

// WriteHeader records the status code. Only the first call has effect until Reset.
func (w *ResponseBuffer) WriteHeader(statusCode int) {
	if w.wrote {
		return
	}

	w.status, w.wrote = statusCode, true
}

// Reset discards the spooled body, the headers and the status code. It panics once the response was explicitly
// flushed since the client has already seen part of it.
func (w *ResponseBuffer) Reset() {
	if w.flushed {
		panic("bbody: cannot reset response, already flushed")
	}

	w.header = http.Header{}
	w.status, w.wrote = http.StatusOK, false

	if err := w.body.Reset(); err != nil {
		_ = w.body.Close()
		w.body = spool.NewWriteStream(w.opts...)
	}
}

// Free releases the spooled body. The buffer must not be used afterwards.
func (w *ResponseBuffer) Free() {
	_ = w.body.Close()
}

// Flushed reports whether the status line and headers were sent to the client.
func (w *ResponseBuffer) Flushed() bool { return w.flushed }

// FlushBuffer sends the status, the headers and everything spooled so far to the underlying writer.
func (w *ResponseBuffer) FlushBuffer() error {
	if !w.flushed {
		dst := w.resp.Header()
		for k, vs := range w.header {
			dst[k] = vs
		}

		w.resp.WriteHeader(w.status)
		w.flushed = true
	}

	if _, err := w.body.DrainTo(w.resp); err != nil {
		return errors.Wrap(err, "flush spooled body")
	}

	return nil
}

// FlushError flushes the buffer and then the underlying writer. It is called by http.ResponseController.
func (w *ResponseBuffer) FlushError() error {
	if err := w.FlushBuffer(); err != nil {
		return err
	}

	if err := http.NewResponseController(w.resp).Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return errors.Wrap(err, "flush underlying writer")
	}

	return nil
}

// Flush implements http.Flusher.
func (w *ResponseBuffer) Flush() {
	_ = w.FlushError()
}

// Unwrap returns the underlying writer, it is used by http.ResponseController.
func (w *ResponseBuffer) Unwrap() http.ResponseWriter {
	return w.resp
}

var (
	_ ResponseWriter = &ResponseBuffer{}
	_ http.Flusher   = &ResponseBuffer{}
)
