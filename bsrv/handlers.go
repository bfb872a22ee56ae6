package bsrv

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/advdv/bbody"
	"github.com/advdv/bbody/chunk"
	"github.com/advdv/bbody/multipart"
	"github.com/advdv/bbody/spool"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Handlers implement the ingestion endpoints of the service.
type Handlers struct {
	opts bbody.Options
}

// NewHandlers creates the handlers with the body limits of the environment.
func NewHandlers(env Environment) *Handlers {
	return &Handlers{opts: env.bodyOptions()}
}

// Routing registers the ingestion endpoints.
func Routing(m *Mux, h *Handlers) {
	m.HandleFunc("POST /forms", h.Forms)
	m.HandleFunc("POST /sections", h.Sections)
	m.HandleFunc("POST /echo", h.Echo)
}

type fileJSON struct {
	Name        string `json:"name"`
	FileName    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Forms decodes an urlencoded or multipart form and describes its values and files.
func (h *Handlers) Forms(ctx context.Context, w bbody.ResponseWriter, r *http.Request) error {
	f, err := bbody.ReadForm(ctx, r, h.opts)
	if err != nil {
		return errors.Wrap(err, "read form")
	}
	defer f.Close()

	Log(ctx).Info("decoded form",
		zap.Strings("keys", lo.Keys(f.Values)),
		zap.Int("files", len(f.Files)))

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"values": f.Values,
		"files": lo.Map(f.Files, func(ff *bbody.FormFile, _ int) fileJSON {
			return fileJSON{Name: ff.Name, FileName: ff.FileName, ContentType: ff.ContentType, Size: ff.Size}
		}),
	})
}

type sectionJSON struct {
	Offset  int64               `json:"offset"`
	Size    int64               `json:"size"`
	Headers map[string][]string `json:"headers"`
	Preview string              `json:"preview,omitempty"`
}

// Sections scans any multipart body and describes each section. With the preview query parameter set to n, the first
// n bytes of every section are included after the section was measured.
func (h *Handlers) Sections(ctx context.Context, w bbody.ResponseWriter, r *http.Request) error {
	boundary, err := multipart.BoundaryFrom(r.Header.Get("Content-Type"), h.opts.BoundaryLengthLimit)
	if err != nil {
		return err
	}

	var preview int64
	if v := r.URL.Query().Get("preview"); v != "" {
		if preview, err = strconv.ParseInt(v, 10, 64); err != nil || preview < 0 {
			return bbody.NewError(bbody.CodeBadRequest, errors.Newf("invalid preview %q", v))
		}
	}

	mr := multipart.NewReader(boundary, chunk.FromReader(r.Body, 0),
		multipart.WithHeadersCountLimit(h.opts.HeadersCountLimit),
		multipart.WithHeadersLengthLimit(h.opts.HeadersLengthLimit),
		multipart.WithBodyLengthLimit(h.opts.MultipartBodyLengthLimit),
		multipart.WithPool(h.opts.Pool))
	defer mr.Close()

	var sections []sectionJSON
	for {
		sec, err := mr.NextSection(ctx)
		if err != nil {
			return errors.Wrap(err, "next section")
		}
		if sec == nil {
			break
		}

		out, err := describeSection(sec, preview, h.opts)
		if err != nil {
			return err
		}
		sections = append(sections, out)
	}

	Log(ctx).Info("scanned multipart body", zap.Int("sections", len(sections)))

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"boundary": boundary,
		"sections": lo.Ternary(sections == nil, []sectionJSON{}, sections),
	})
}

func describeSection(sec *multipart.Section, preview int64, opts bbody.Options) (sectionJSON, error) {
	out := sectionJSON{
		Offset: sec.Offset(),
		Headers: lo.SliceToMap(sec.Header.Fields(), func(f multipart.Field) (string, []string) {
			return f.Name, f.Values
		}),
	}

	if preview == 0 {
		size, err := io.Copy(io.Discard, sec.Body)
		out.Size = size
		return out, errors.Wrap(err, "read section")
	}

	rs := sec.EnableRewind(spool.WithTempDir(opts.TempDir), spool.WithPool(opts.Pool))
	defer rs.Close()

	size, err := io.Copy(io.Discard, rs)
	if err != nil {
		return out, errors.Wrap(err, "read section")
	}
	out.Size = size

	head := make([]byte, min(preview, size))
	if _, err := rs.ReadAt(head, 0); err != nil && !errors.Is(err, io.EOF) {
		return out, errors.Wrap(err, "replay section")
	}
	out.Preview = string(head)

	return out, nil
}

// Echo writes the request body back twice, once as read and once replayed from the buffer. Large bodies go through
// the spool on both sides.
func (h *Handlers) Echo(ctx context.Context, w bbody.ResponseWriter, r *http.Request) error {
	var total int64
	for range 2 {
		if err := bbody.Rewind(r); err != nil {
			return errors.Wrap(err, "rewind")
		}

		n, err := io.Copy(w, r.Body)
		total += n
		if err != nil {
			return errors.Wrap(err, "echo body")
		}
	}

	if bb, ok := r.Body.(*bbody.BufferedBody); ok && bb.TempFile() != "" {
		w.Header().Set("X-Body-Spilled", "true")
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}

	Log(ctx).Debug("echoed body", zap.Int64("bytes", total))
	return nil
}
