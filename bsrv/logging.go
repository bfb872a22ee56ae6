package bsrv

import (
	"github.com/advdv/bbody"
	"github.com/advdv/bbody/bodyerr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger configured from the environment.
// Uses JSON encoding with ISO8601 timestamps.
// BB_LOG_LEVEL controls the level (debug, info, warn, error).
func NewLogger(env Environment) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(env.logLevel())
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogUnhandledServeError(err error) {
	l.Logger.Error("unhandled server error", zap.Error(err))
}

func (l zapLogger) LogImplicitFlushError(err error) {
	l.Logger.Error("error while flushing implicitly", zap.Error(err))
}

func (l zapLogger) LogRequestBodyError(err error) {
	l.Logger.Info("rejected request body",
		zap.Stringer("kind", bodyerr.KindOf(err)),
		zap.Error(err))
}

func (l zapLogger) LogSpill(file string) {
	l.Logger.Debug("body spilled to disk", zap.String("file", file))
}

func newZapBBodyLogger(l *zap.Logger) bbody.Logger {
	return zapLogger{l.Named("bbody").Named("bsrv")}
}
