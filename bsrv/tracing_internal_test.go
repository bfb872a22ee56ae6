package bsrv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/advdv/bbody"
	"github.com/advdv/bbody/bodyerr"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestNewExporter(t *testing.T) {
	ctx := context.Background()

	for _, typ := range []string{"stdout", ""} {
		exp, err := newExporter(ctx, typ)
		require.NoError(t, err)
		require.NotNil(t, exp)
	}

	_, err := newExporter(ctx, "invalid")
	require.EqualError(t, err, `unsupported BB_OTEL_EXPORTER: "invalid" (supported: stdout, none)`)
}

func TestNewResource(t *testing.T) {
	res := newResource("my-service")

	_, found := lo.Find(res.Attributes(), func(kv attribute.KeyValue) bool {
		return string(kv.Key) == "service.name" && kv.Value.AsString() == "my-service"
	})
	require.True(t, found)
}

func TestNewTracerProvider(t *testing.T) {
	for _, tt := range []struct {
		exporter string
		sdk      bool
	}{
		{"stdout", true},
		{"none", false},
	} {
		t.Run(tt.exporter, func(t *testing.T) {
			var tp trace.TracerProvider
			app := fxtest.New(t,
				fx.NopLogger,
				fx.Supply(fx.Annotate(testEnv{otelExp: tt.exporter}, fx.As(new(Environment)))),
				fx.Provide(NewTracerProvider),
				fx.Populate(&tp),
			)

			app.RequireStart()
			_, isSDK := tp.(*sdktrace.TracerProvider)
			require.Equal(t, tt.sdk, isSDK)
			app.RequireStop()
		})
	}
}

func TestNewTracerProviderInvalidExporter(t *testing.T) {
	app := fx.New(
		fx.NopLogger,
		fx.Supply(fx.Annotate(testEnv{otelExp: "invalid"}, fx.As(new(Environment)))),
		fx.Provide(NewTracerProvider),
		fx.Invoke(func(trace.TracerProvider) {}),
	)
	require.Error(t, app.Err())
}

func TestWithTracingExcludesPaths(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	handler := withTracing(tp, propagation.TraceContext{}, "test-service", "/health")(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	for _, path := range []string{"/health", "/forms"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "POST /forms", spans[0].Name())
}

func TestWithBodyEvents(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	opts := bbody.DefaultOptions()
	opts.MemoryThreshold = 4
	opts.ValueCountLimit = 1
	opts.TempDir = func() (string, error) { return t.TempDir(), nil }

	mux := NewMux(testEnv{}, zap.NewNop())
	mux.Use(WithLogger(zap.NewNop()), bbody.EnableBuffering(opts, mux.Logger()), withBodyEvents())
	mux.HandleFunc("POST /forms", (&Handlers{opts: opts}).Forms)
	handler := withTracing(tp, propagation.TraceContext{}, "test")(mux)

	req := httptest.NewRequest(http.MethodPost, "/forms", strings.NewReader("a=1&b=2&c=3"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	spans := rec.Ended()
	require.Len(t, spans, 1)

	names := lo.Map(spans[0].Events(), func(e sdktrace.Event, _ int) string { return e.Name })
	require.Equal(t, []string{"body.spilled", "body.rejected"}, names)

	kind, _ := lo.Find(spans[0].Events()[1].Attributes, func(kv attribute.KeyValue) bool {
		return kv.Key == "body.error.kind"
	})
	require.Equal(t, bodyerr.KindFormLimit.String(), kind.Value.AsString())
}
