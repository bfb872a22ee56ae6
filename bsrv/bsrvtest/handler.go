package bsrvtest

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/advdv/bbody"
	"github.com/advdv/bbody/bsrv"
	"go.uber.org/zap"
)

// CallHandler invokes a [bbody.HandlerFunc] the way the service mux does and
// returns the recorded response. The request body is buffered with default
// limits and the request carries logger, so [bsrv.Log] works. A nil logger
// selects a no-op logger.
func CallHandler(handler bbody.HandlerFunc[context.Context], req *http.Request, logger *zap.Logger) *httptest.ResponseRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}

	bare := bbody.Wrap(bbody.ToBare[context.Context](handler, bbody.StdContextInit),
		bsrv.WithLogger(logger),
		bbody.EnableBuffering(bbody.DefaultOptions(), nil))

	rec := httptest.NewRecorder()
	bbody.ToStd(bare, -1, bbody.NewStdLogger(nil)).ServeHTTP(rec, req)
	return rec
}
