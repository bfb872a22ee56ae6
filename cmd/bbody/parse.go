package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/advdv/bbody"
	"github.com/advdv/bbody/chunk"
	"github.com/advdv/bbody/multipart"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// LimitFlags mirror bbody.Options.
type LimitFlags struct {
	MemoryThreshold          int    `help:"Bytes kept in memory before spilling to disk" default:"65536"`
	BufferLimit              int64  `help:"Maximum buffered body size" default:"134217728"`
	TempDir                  string `help:"Directory for spill files" type:"existingdir"`
	BoundaryLengthLimit      int    `help:"Maximum multipart boundary length" default:"128"`
	HeadersCountLimit        int    `help:"Maximum headers per multipart section" default:"16"`
	HeadersLengthLimit       int    `help:"Maximum header bytes per multipart section" default:"16384"`
	MultipartBodyLengthLimit int64  `help:"Maximum body size of a multipart section" default:"134217728"`
	ValueCountLimit          int    `help:"Maximum number of form values" default:"1024"`
	KeyLengthLimit           int    `help:"Maximum form key length" default:"2048"`
	ValueLengthLimit         int    `help:"Maximum form value length" default:"4194304"`
}

func (l LimitFlags) options(logs bbody.Logger) bbody.Options {
	opts := bbody.Options{
		MemoryThreshold:          l.MemoryThreshold,
		BufferLimit:              l.BufferLimit,
		BoundaryLengthLimit:      l.BoundaryLengthLimit,
		HeadersCountLimit:        l.HeadersCountLimit,
		HeadersLengthLimit:       l.HeadersLengthLimit,
		MultipartBodyLengthLimit: l.MultipartBodyLengthLimit,
		ValueCountLimit:          l.ValueCountLimit,
		KeyLengthLimit:           l.KeyLengthLimit,
		ValueLengthLimit:         l.ValueLengthLimit,
		OnSpill:                  logs.LogSpill,
	}
	if dir := l.TempDir; dir != "" {
		opts.TempDir = func() (string, error) { return dir, nil }
	}

	return opts
}

// ParseCLI decodes a body file as the given content type.
type ParseCLI struct {
	File        string `arg:"" help:"Body file, - reads standard input"`
	ContentType string `help:"Content-Type of the body" short:"t" required:""`
	JSON        bool   `help:"Output in JSON format" short:"j"`

	LimitFlags `embed:""`
}

func (p *ParseCLI) Run(logger *slog.Logger) error {
	in := io.Reader(os.Stdin)
	if p.File != "-" {
		f, err := os.Open(p.File)
		if err != nil {
			return errors.Wrap(err, "open body")
		}
		defer f.Close()
		in = f
	}

	return parseBody(context.Background(), os.Stdout, in, p.ContentType, p.JSON,
		p.LimitFlags.options(bbody.NewSlogLogger(logger)))
}

type parsedFile struct {
	Name        string `json:"name"`
	FileName    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type parsedSection struct {
	Offset  int64               `json:"offset"`
	Size    int64               `json:"size"`
	Headers map[string][]string `json:"headers"`
}

type parsedBody struct {
	Values   map[string][]string `json:"values,omitempty"`
	Files    []parsedFile        `json:"files,omitempty"`
	Sections []parsedSection     `json:"sections,omitempty"`
}

// parseBody decodes forms with ReadForm and scans any other multipart body section by section.
func parseBody(ctx context.Context, w io.Writer, body io.Reader, contentType string, asJSON bool, opts bbody.Options) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", body)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", contentType)

	var out parsedBody
	mt, _, _ := mime.ParseMediaType(contentType)
	switch {
	case bbody.HasFormContentType(req):
		f, err := bbody.ReadForm(ctx, req, opts)
		if err != nil {
			return errors.Wrap(err, "read form")
		}
		defer f.Close()

		out.Values = f.Values
		out.Files = lo.Map(f.Files, func(ff *bbody.FormFile, _ int) parsedFile {
			return parsedFile{Name: ff.Name, FileName: ff.FileName, ContentType: ff.ContentType, Size: ff.Size}
		})
	case strings.HasPrefix(mt, "multipart/"):
		if out.Sections, err = scanSections(ctx, body, contentType, opts); err != nil {
			return err
		}
	default:
		return errors.Wrapf(bbody.ErrUnsupportedContentType, "%q", contentType)
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	return printBody(w, out)
}

func scanSections(ctx context.Context, body io.Reader, contentType string, opts bbody.Options) ([]parsedSection, error) {
	boundary, err := multipart.BoundaryFrom(contentType, opts.BoundaryLengthLimit)
	if err != nil {
		return nil, err
	}

	mr := multipart.NewReader(boundary, chunk.FromReader(body, 0),
		multipart.WithHeadersCountLimit(opts.HeadersCountLimit),
		multipart.WithHeadersLengthLimit(opts.HeadersLengthLimit),
		multipart.WithBodyLengthLimit(opts.MultipartBodyLengthLimit))
	defer mr.Close()

	var sections []parsedSection
	for {
		sec, err := mr.NextSection(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "next section")
		}
		if sec == nil {
			return sections, nil
		}

		size, err := io.Copy(io.Discard, sec.Body)
		if err != nil {
			return nil, errors.Wrap(err, "read section")
		}

		sections = append(sections, parsedSection{
			Offset: sec.Offset(),
			Size:   size,
			Headers: lo.SliceToMap(sec.Header.Fields(), func(f multipart.Field) (string, []string) {
				return f.Name, f.Values
			}),
		})
	}
}

func printBody(w io.Writer, out parsedBody) error {
	var b strings.Builder
	keys := lo.Keys(out.Values)
	slices.Sort(keys)
	for _, key := range keys {
		for _, v := range out.Values[key] {
			fmt.Fprintf(&b, "%s=%q\n", key, v)
		}
	}
	for _, f := range out.Files {
		fmt.Fprintf(&b, "%s: file %q (%s, %d bytes)\n", f.Name, f.FileName, f.ContentType, f.Size)
	}
	for i, s := range out.Sections {
		fmt.Fprintf(&b, "section %d: offset %d, %d bytes, %d headers\n", i, s.Offset, s.Size, len(s.Headers))
	}

	_, err := io.WriteString(w, b.String())
	return errors.Wrap(err, "write output")
}
