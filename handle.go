package bbody

import (
	"context"
	"net/http"

	"github.com/advdv/bbody/bodyerr"
	"github.com/cockroachdb/errors"
)

// Context constraint for "leaf" nodes.
type Context interface{ context.Context }

// ResponseWriter implements the http.ResponseWriter but the underlying bytes are spooled. This allows
// middleware to reset the writer and formulate a completely new response.
type ResponseWriter interface {
	http.ResponseWriter
	Reset()
	Free()
	FlushBuffer() error
}

// Handler mirrors http.Handler but it supports typed context values and a buffered response allow returning error.
type Handler[C Context] interface {
	ServeBBody(ctx C, w ResponseWriter, r *http.Request) error
}

// HandlerFunc allow casting a function to implement [Handler].
type HandlerFunc[C Context] func(C, ResponseWriter, *http.Request) error

// ServeBBody implements the [Handler] interface.
func (f HandlerFunc[C]) ServeBBody(ctx C, w ResponseWriter, r *http.Request) error {
	return f(ctx, w, r)
}

// BareHandler describes how middleware serves HTTP requests. Its signature differs from the "leaf" [Handler] in
// that no typed context is passed.
type BareHandler interface {
	ServeBareBBody(w ResponseWriter, r *http.Request) error
}

// BareHandlerFunc allow casting a function to an implementation of [BareHandler].
type BareHandlerFunc func(ResponseWriter, *http.Request) error

// ServeBareBBody implements the [BareHandler] interface.
func (f BareHandlerFunc) ServeBareBBody(w ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// ContextInitFunc describe functions that turn requests into a typed context for our "leaf" handlers.
type ContextInitFunc[C Context] func(*http.Request) (C, error)

// StdContextInit uses the request's context as is.
func StdContextInit(r *http.Request) (context.Context, error) { return r.Context(), nil }

// ToBare converts a typed context handler 'h' into a bare buffered handler.
func ToBare[C Context](h Handler[C], contextInit ContextInitFunc[C]) BareHandler {
	return BareHandlerFunc(func(w ResponseWriter, r *http.Request) error {
		ctx, err := contextInit(r)
		if err != nil {
			return errors.Wrap(err, "init typed context from standard request context")
		}

		return h.ServeBBody(ctx, w, r)
	})
}

// ToStd converts a bare handler into a standard library http.Handler. The implementation creates a spooled
// response writer and flushes it implicitly after serving the request. Errors that carry a status code, including
// body ingestion failures, replace the response with that status and the error message. Any other error is logged
// and rendered as a plain 500.
func ToStd(h BareHandler, bufLimit int, logs Logger, opts ...ResponseOption) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		bresp := NewResponseWriter(resp, bufLimit, opts...)
		defer bresp.Free()

		if err := h.ServeBareBBody(bresp, req); err != nil {
			renderError(bresp, logs, err)
		}

		if err := bresp.FlushBuffer(); err != nil {
			logs.LogImplicitFlushError(err)
		}
	})
}

func renderError(bresp *ResponseBuffer, logs Logger, err error) {
	if bresp.Flushed() {
		// the status line is on the wire, nothing better can be sent anymore
		logs.LogUnhandledServeError(err)
		return
	}

	bresp.Reset()

	code := CodeOf(err)
	if code == CodeUnknown {
		logs.LogUnhandledServeError(err)
		http.Error(bresp,
			http.StatusText(http.StatusInternalServerError),
			http.StatusInternalServerError)
		return
	}

	msg := err.Error()
	if _, ok := asError(err); !ok {
		logs.LogRequestBodyError(err)

		var berr *bodyerr.Error
		if errors.As(err, &berr) {
			msg = berr.Error()
		}
	}

	http.Error(bresp, msg, int(code))
}
