package bbody

import (
	"context"
	"log"
	"log/slog"
	"sync/atomic"
	"testing"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogUnhandledServeError(err error)
	LogImplicitFlushError(err error)
	LogRequestBodyError(err error)
	LogSpill(file string)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogUnhandledServeError(err error) {
	l.Logger.Printf("bbody: unhandled server error: %s", err)
}

func (l stdLogger) LogImplicitFlushError(err error) {
	l.Logger.Printf("bbody: error while flushing implicitly: %s", err)
}

func (l stdLogger) LogRequestBodyError(err error) {
	l.Logger.Printf("bbody: rejected request body: %s", err)
}

func (l stdLogger) LogSpill(file string) {
	l.Logger.Printf("bbody: body spilled to %s", file)
}

// NewStdLogger wraps a standard library logger. A nil logger selects log.Default().
func NewStdLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}
	return stdLogger{l}
}

type slogLogger struct{ *slog.Logger }

func (l slogLogger) LogUnhandledServeError(err error) {
	l.Logger.Error("unhandled server error", slog.Any("error", err))
}

func (l slogLogger) LogImplicitFlushError(err error) {
	l.Logger.Error("error while flushing implicitly", slog.Any("error", err))
}

func (l slogLogger) LogRequestBodyError(err error) {
	l.Logger.Info("rejected request body", slog.Any("error", err))
}

func (l slogLogger) LogSpill(file string) {
	l.Logger.Log(context.Background(), slog.LevelDebug, "body spilled to disk", slog.String("file", file))
}

// NewSlogLogger inits a Logger that writes structured records to l.
func NewSlogLogger(l *slog.Logger) Logger {
	return slogLogger{l.With(slog.String("component", "bbody"))}
}

type TestLogger struct {
	tb testing.TB

	NumLogUnhandledServeError int64
	NumLogImplicitFlushError  int64
	NumLogRequestBodyError    int64
	NumLogSpill               int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogUnhandledServeError(err error) {
	atomic.AddInt64(&l.NumLogUnhandledServeError, 1)
	l.tb.Logf("bbody: unhandled server error: %s", err)
}

func (l *TestLogger) LogImplicitFlushError(err error) {
	atomic.AddInt64(&l.NumLogImplicitFlushError, 1)
	l.tb.Logf("bbody: error while flushing implicitly: %s", err)
}

func (l *TestLogger) LogRequestBodyError(err error) {
	atomic.AddInt64(&l.NumLogRequestBodyError, 1)
	l.tb.Logf("bbody: rejected request body: %s", err)
}

func (l *TestLogger) LogSpill(file string) {
	atomic.AddInt64(&l.NumLogSpill, 1)
	l.tb.Logf("bbody: body spilled to %s", file)
}

var (
	_ Logger = &TestLogger{}
	_ Logger = stdLogger{}
	_ Logger = slogLogger{}
)
