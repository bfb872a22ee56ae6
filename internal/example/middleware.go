// Package example implements example middleware in an outside package.
package example

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/advdv/bbody"
)

// ctxKey type scopes middlware values.
type ctxKey string

// Middleware provides an example for middleware that adds a logger to the context and reports rejected bodies.
func Middleware(logs *slog.Logger) bbody.Middleware {
	return func(n bbody.BareHandler) bbody.BareHandler {
		return bbody.BareHandlerFunc(func(w bbody.ResponseWriter, r *http.Request) error {
			logs := logs.With(slog.String("method", r.Method))
			r = r.WithContext(context.WithValue(r.Context(), ctxKey("slog"), logs))

			err := n.ServeBareBBody(w, r)
			if code := bbody.CodeOf(err); code >= 400 && code < 500 {
				logs.InfoContext(r.Context(), "client error", slog.Int("code", int(code)), slog.Any("error", err))
			}

			return err
		})
	}
}

// Log returns the logger stored by Middleware, or nil.
func Log(ctx context.Context) *slog.Logger {
	v, _ := ctx.Value(ctxKey("slog")).(*slog.Logger)

	return v
}
