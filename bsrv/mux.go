package bsrv

import (
	"context"
	"net/http"

	"github.com/advdv/bbody"
	"go.uber.org/zap"
)

// Mux is the bbody mux with a plain context.Context for handlers.
type Mux = bbody.ServeMux[context.Context]

// NewMux creates a new Mux that logs through zap and caps response bodies as configured by the environment.
func NewMux(env Environment, logger *zap.Logger) *Mux {
	return bbody.NewCustomServeMux[context.Context](
		bbody.StdContextInit,
		env.responseBufferLimit(),
		newZapBBodyLogger(logger),
		http.NewServeMux(),
	)
}
