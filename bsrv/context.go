package bsrv

import (
	"context"
	"net/http"

	"github.com/advdv/bbody"
	"github.com/advdv/bbody/bodyerr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ctxKey is the key type for context values.
type ctxKey int

const (
	ctxKeyRequestDep ctxKey = iota
)

// requestDep holds request-scoped dependencies available via context.
type requestDep struct {
	logger *zap.Logger
}

// withRequestDep injects dependencies into the request context.
func withRequestDep(d *requestDep) bbody.Middleware {
	return func(next bbody.BareHandler) bbody.BareHandler {
		return bbody.BareHandlerFunc(func(w bbody.ResponseWriter, r *http.Request) error {
			ctx := context.WithValue(r.Context(), ctxKeyRequestDep, d)
			return next.ServeBareBBody(w, r.WithContext(ctx))
		})
	}
}

// WithLogger returns middleware that makes logger available to [Log].
func WithLogger(logger *zap.Logger) bbody.Middleware {
	return withRequestDep(&requestDep{logger: logger})
}

// withBodyEvents records on the request span whether the buffered body spilled to disk and why it was rejected. It
// must run inside bbody.EnableBuffering so the buffers still exist when the handler returns.
func withBodyEvents() bbody.Middleware {
	return func(next bbody.BareHandler) bbody.BareHandler {
		return bbody.BareHandlerFunc(func(w bbody.ResponseWriter, r *http.Request) error {
			err := next.ServeBareBBody(w, r)

			span := trace.SpanFromContext(r.Context())
			if bb, ok := r.Body.(*bbody.BufferedBody); ok {
				if bb.TempFile() != "" {
					span.AddEvent("body.spilled", trace.WithAttributes(
						attribute.Int64("body.buffered", bb.Buffered())))
				}
			}

			if kind := bodyerr.KindOf(err); kind != bodyerr.KindUnknown {
				span.AddEvent("body.rejected", trace.WithAttributes(
					attribute.String("body.error.kind", kind.String()),
					attribute.Int("http.status_code", int(bbody.CodeOf(err)))))
			}

			return err
		})
	}
}

func requestDepFromContext(ctx context.Context) *requestDep {
	d, ok := ctx.Value(ctxKeyRequestDep).(*requestDep)
	if !ok {
		panic("bsrv: requestDep not found in context; is the middleware configured?")
	}
	return d
}

// Log returns a trace-correlated zap logger from the context.
func Log(ctx context.Context) *zap.Logger {
	d := requestDepFromContext(ctx)
	return d.logger.With(traceFields(ctx)...)
}

// Span returns the current trace span from the context.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	sc := span.SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
