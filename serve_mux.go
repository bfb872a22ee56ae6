package bbody

import (
	"context"
	"log"
	"net/http"
)

// ServeMux is an HTTP multiplexer with spooled responses and error handling.
type ServeMux[C Context] struct {
	logs        Logger
	bufLimit    int
	initCtx     ContextInitFunc[C]
	respOpts    []ResponseOption
	mux         *http.ServeMux
	middlewares struct {
		captured bool
		buffered []Middleware
	}
}

// NewServeMux creates a new ServeMux with default settings.
func NewServeMux() *ServeMux[context.Context] {
	return NewCustomServeMux[context.Context](StdContextInit, -1, NewStdLogger(log.Default()), http.NewServeMux())
}

// NewCustomServeMux creates a ServeMux with a custom typed context and settings. Responses larger than bufLimit
// fail with ErrBufferFull, opts configure the spooling of response bodies.
func NewCustomServeMux[C Context](
	initCtx ContextInitFunc[C], bufLimit int, logger Logger, baseMux *http.ServeMux, opts ...ResponseOption,
) *ServeMux[C] {
	return &ServeMux[C]{
		logs:     logger,
		bufLimit: bufLimit,
		initCtx:  initCtx,
		respOpts: opts,
		mux:      baseMux,
	}
}

// Logger returns the logger the mux reports to.
func (m *ServeMux[C]) Logger() Logger { return m.logs }

// Use allows providing of middleware.
func (m *ServeMux[C]) Use(mw ...Middleware) {
	m.ensureNoUseAfterHandle()
	m.middlewares.buffered = append(m.middlewares.buffered, mw...)
}

// HandleFunc handles the request given the pattern using a function.
func (m *ServeMux[C]) HandleFunc(pattern string, handler HandlerFunc[C]) {
	m.Handle(pattern, handler)
}

// HandleStd registers a standard library [http.Handler] for the given pattern. Middleware registered via
// [ServeMux.Use] is applied. The handler owns its error responses, it writes them itself.
func (m *ServeMux[C]) HandleStd(pattern string, handler http.Handler) {
	m.Handle(pattern, HandlerFunc[C](func(_ C, w ResponseWriter, r *http.Request) error {
		handler.ServeHTTP(w, r)
		return nil
	}))
}

// Handle handles the request given a handler.
func (m *ServeMux[C]) Handle(pattern string, handler Handler[C]) {
	m.middlewares.captured = true
	m.mux.Handle(pattern, ToStd(
		Wrap(ToBare(handler, m.initCtx), m.middlewares.buffered...),
		m.bufLimit,
		m.logs,
		m.respOpts...,
	))
}

// ServeHTTP makes the server mux implement the http.Handler interface.
func (m *ServeMux[C]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

func (m *ServeMux[C]) ensureNoUseAfterHandle() {
	if m.middlewares.captured {
		panic("bbody: cannot call Use() after calling Handle")
	}
}
