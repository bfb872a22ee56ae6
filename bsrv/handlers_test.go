package bsrv_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/advdv/bbody/bsrv"
	"github.com/advdv/bbody/bsrv/bsrvtest"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newHandlers(t *testing.T) *bsrv.Handlers {
	t.Helper()
	bsrvtest.SetBaseEnv(t, 8090)

	env, err := bsrv.ParseEnv[bsrv.BaseEnvironment]()()
	require.NoError(t, err)
	return bsrv.NewHandlers(env)
}

func multipartBody(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.SetBoundary("bsrv-test-boundary"))
	require.NoError(t, mw.WriteField("title", "hello"))

	fw, err := mw.CreateFormFile("doc", "doc.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("file content"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestFormsHandler(t *testing.T) {
	h := newHandlers(t)
	core, logs := observer.New(zapcore.InfoLevel)

	body, ct := multipartBody(t)
	req := httptest.NewRequest(http.MethodPost, "/forms", body)
	req.Header.Set("Content-Type", ct)

	rec := bsrvtest.CallHandler(h.Forms, req, zap.New(core))
	require.Equal(t, http.StatusOK, rec.Code)

	res := rec.Body.String()
	require.Equal(t, "hello", gjson.Get(res, "values.title.0").String())
	require.Equal(t, int64(1), gjson.Get(res, "files.#").Int())
	require.Equal(t, "doc", gjson.Get(res, "files.0.name").String())
	require.Equal(t, "doc.txt", gjson.Get(res, "files.0.filename").String())
	require.Equal(t, int64(12), gjson.Get(res, "files.0.size").Int())

	require.Equal(t, 1, logs.FilterMessage("decoded form").Len())
}

func TestFormsHandlerRejects(t *testing.T) {
	h := newHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/forms", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := bsrvtest.CallHandler(h.Forms, req, nil)
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/forms", strings.NewReader("a=%ZZ&b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = bsrvtest.CallHandler(h.Forms, req, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "%ZZ", gjson.Get(rec.Body.String(), "values.a.0").String())
}

func TestSectionsHandler(t *testing.T) {
	h := newHandlers(t)

	body, ct := multipartBody(t)
	req := httptest.NewRequest(http.MethodPost, "/sections?preview=4", body)
	req.Header.Set("Content-Type", ct)

	rec := bsrvtest.CallHandler(h.Sections, req, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	res := rec.Body.String()
	require.Equal(t, "bsrv-test-boundary", gjson.Get(res, "boundary").String())
	require.Equal(t, int64(2), gjson.Get(res, "sections.#").Int())
	require.Equal(t, int64(5), gjson.Get(res, "sections.0.size").Int())
	require.Equal(t, "hell", gjson.Get(res, "sections.0.preview").String())
	require.Equal(t, int64(12), gjson.Get(res, "sections.1.size").Int())
	require.Equal(t, "file", gjson.Get(res, "sections.1.preview").String())
	require.Equal(t, "application/octet-stream",
		gjson.Get(res, `sections.1.headers.Content-Type.0`).String())
}

func TestSectionsHandlerErrors(t *testing.T) {
	h := newHandlers(t)

	for _, tt := range []struct {
		name string
		ct   string
		body string
		path string
		code int
	}{
		{"not multipart", "text/plain", "x", "/sections", http.StatusUnsupportedMediaType},
		{"missing boundary", "multipart/mixed", "x", "/sections", http.StatusBadRequest},
		{"boundary too long", "multipart/mixed; boundary=" + strings.Repeat("b", 129), "x", "/sections", http.StatusBadRequest},
		{"truncated", "multipart/mixed; boundary=b", "--b\r\n\r\nbody", "/sections", http.StatusBadRequest},
		{"invalid preview", "multipart/mixed; boundary=b", "--b--", "/sections?preview=x", http.StatusBadRequest},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.ct)

			rec := bsrvtest.CallHandler(h.Sections, req, nil)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestEchoHandler(t *testing.T) {
	h := newHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("ping"))
	req.Header.Set("Content-Type", "text/plain")

	rec := bsrvtest.CallHandler(h.Echo, req, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "pingping", rec.Body.String())
	require.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	require.Empty(t, rec.Header().Get("X-Body-Spilled"))
}
