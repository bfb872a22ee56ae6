package bsrv_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/advdv/bbody/bsrv"
	"github.com/advdv/bbody/bsrv/bsrvtest"
	"github.com/carlmjohnson/requests"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
)

func TestAppEndpoints(t *testing.T) {
	bsrvtest.SetBaseEnv(t, 18181).ServiceName("bbody-test").HealthCheckPath("/ready").
		MemoryThreshold(16).ValueCountLimit(3)

	app := bsrvtest.New[bsrv.BaseEnvironment](t, bsrv.Routing)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	ctx := context.Background()
	rb := func() *requests.Builder {
		return bsrv.NewRequestBuilder(
			bsrv.NewHTTPTransport(noop.NewTracerProvider(), propagation.TraceContext{}),
			"http://localhost:18181")
	}

	t.Run("health", func(t *testing.T) {
		require.NoError(t, rb().Path("/ready").Fetch(ctx))
	})

	t.Run("forms", func(t *testing.T) {
		body, ct := multipartBody(t)

		var res string
		require.NoError(t, rb().Path("/forms").
			Method(http.MethodPost).
			ContentType(ct).
			BodyReader(body).
			ToString(&res).
			Fetch(ctx))

		require.Equal(t, "hello", gjson.Get(res, "values.title.0").String())
		require.Equal(t, "doc.txt", gjson.Get(res, "files.0.filename").String())
	})

	t.Run("forms limit", func(t *testing.T) {
		var res string
		require.NoError(t, rb().Path("/forms").
			Method(http.MethodPost).
			ContentType("application/x-www-form-urlencoded").
			BodyReader(strings.NewReader("a=1&b=2&c=3&d=4")).
			CheckStatus(http.StatusRequestEntityTooLarge).
			ToString(&res).
			Fetch(ctx))

		require.Equal(t, "Form value count limit 3 exceeded.\n", res)
	})

	t.Run("echo spills", func(t *testing.T) {
		payload := strings.Repeat("0123456789", 10)

		var res string
		headers := http.Header{}
		require.NoError(t, rb().Path("/echo").
			Method(http.MethodPost).
			ContentType("text/plain").
			BodyReader(strings.NewReader(payload)).
			CopyHeaders(headers).
			ToString(&res).
			Fetch(ctx))

		require.Equal(t, payload+payload, res)
		require.Equal(t, "true", headers.Get("X-Body-Spilled"))
	})

	t.Run("sections", func(t *testing.T) {
		body, ct := multipartBody(t)

		var res string
		require.NoError(t, rb().Path("/sections").
			Method(http.MethodPost).
			ContentType(ct).
			BodyReader(body).
			ToString(&res).
			Fetch(ctx))

		require.Equal(t, int64(2), gjson.Get(res, "sections.#").Int())
	})
}

func TestAppCustomHealthHandler(t *testing.T) {
	bsrvtest.SetBaseEnv(t, 18182)

	var transport http.RoundTripper
	app := bsrvtest.New[bsrv.BaseEnvironment](t, bsrv.Routing,
		bsrv.WithHealthHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
		bsrv.WithFx(fx.Populate(&transport)),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	require.NotNil(t, transport)
	require.NoError(t, bsrv.NewRequestBuilder(transport, "http://localhost:18182").
		Path("/health").
		CheckStatus(http.StatusTeapot).
		Fetch(context.Background()))
}
