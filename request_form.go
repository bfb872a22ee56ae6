package bbody

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/advdv/bbody/bodyerr"
	"github.com/advdv/bbody/chunk"
	"github.com/advdv/bbody/form"
	"github.com/advdv/bbody/internal/utf8x"
	"github.com/advdv/bbody/multipart"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// ErrUnsupportedContentType is returned by ReadForm for bodies that are neither urlencoded nor multipart forms.
var ErrUnsupportedContentType = errors.New("bbody: unsupported form content type")

const (
	mediaURLEncoded = "application/x-www-form-urlencoded"
	mediaMultipart  = "multipart/form-data"
)

// Form is a decoded request form. File contents are not copied, they are read back from the buffered request
// body. Close the form to release that buffer.
type Form struct {
	Values url.Values
	Files  []*FormFile

	body     *BufferedBody
	releases bool
}

// File returns the first file uploaded under name, or nil.
func (f *Form) File(name string) *FormFile {
	ff, _ := lo.Find(f.Files, func(ff *FormFile) bool { return ff.Name == name })
	return ff
}

// Close releases the buffered request body unless it is owned by an outer EnableBuffering middleware.
func (f *Form) Close() error {
	if f.body == nil || !f.releases {
		return nil
	}
	return f.body.Release()
}

// FormFile is a file section of a multipart form.
type FormFile struct {
	Name        string
	FileName    string
	ContentType string
	Header      multipart.Header
	Size        int64

	offset int64
	src    io.ReaderAt
}

// Open returns a reader over the file content. Any number of readers may be opened.
func (ff *FormFile) Open() *io.SectionReader {
	return io.NewSectionReader(ff.src, ff.offset, ff.Size)
}

// HasFormContentType reports whether the request carries a body ReadForm can decode.
func HasFormContentType(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && (mt == mediaURLEncoded || mt == mediaMultipart)
}

// ReadForm buffers the request body and decodes it as an urlencoded or multipart form under the limits of opts.
func ReadForm(ctx context.Context, r *http.Request, opts Options) (*Form, error) {
	ct := r.Header.Get("Content-Type")
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedContentType, "parse %q", ct)
	}

	bb, installed := BufferBody(r, opts)
	f := &Form{body: bb, releases: installed}

	err = bb.Rewind()
	if err == nil {
		err = decodeForm(ctx, f, mt, ct, opts)
	}

	if err != nil {
		if cerr := f.Close(); cerr != nil {
			return nil, errors.WithSecondaryError(err, cerr)
		}
		return nil, err
	}

	return f, nil
}

func decodeForm(ctx context.Context, f *Form, mt, ct string, opts Options) (err error) {
	switch mt {
	case mediaURLEncoded:
		f.Values, err = form.Read(ctx, f.body, form.WithOptions(opts.formOptions()))
		return err
	case mediaMultipart:
		return readMultipart(ctx, f, ct, opts)
	default:
		return errors.Wrapf(ErrUnsupportedContentType, "%q", mt)
	}
}

func readMultipart(ctx context.Context, f *Form, contentType string, opts Options) error {
	boundary, err := multipart.BoundaryFrom(contentType, opts.BoundaryLengthLimit)
	if err != nil {
		return err
	}

	mr := multipart.NewReader(boundary, chunk.FromReader(f.body, 0), opts.multipartOptions()...)
	defer mr.Close()

	acc := form.NewAccumulator(opts.ValueCountLimit)
	dec := utf8x.NewDecoder(opts.Encoding)

	for {
		sec, err := mr.NextSection(ctx)
		if err != nil {
			return err
		}
		if sec == nil {
			break
		}

		cd, err := sec.ContentDisposition()
		if err != nil || !cd.IsFormData() {
			continue // the reader discards the section body
		}

		if opts.KeyLengthLimit > 0 && len(cd.Name) > opts.KeyLengthLimit {
			return bodyerr.KeyLength(opts.KeyLengthLimit)
		}

		if cd.IsFile() {
			if opts.ValueCountLimit > 0 && len(f.Files) >= opts.ValueCountLimit {
				return bodyerr.ValueCount(opts.ValueCountLimit)
			}

			size, err := io.Copy(io.Discard, sec.Body)
			if err != nil {
				return errors.Wrapf(err, "read file section %q", cd.Name)
			}

			f.Files = append(f.Files, &FormFile{
				Name:        cd.Name,
				FileName:    cd.FileName,
				ContentType: sec.ContentType(),
				Header:      sec.Header,
				Size:        size,
				offset:      sec.Offset(),
				src:         f.body,
			})
			continue
		}

		value, err := readValue(sec.Body, opts.ValueLengthLimit)
		if err != nil {
			return err
		}

		text, err := dec.String(value)
		if err != nil {
			return err
		}

		if err := acc.Append(cd.Name, text); err != nil {
			return err
		}
	}

	f.Values = acc.Values()
	return nil
}

func readValue(r io.Reader, limit int) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}

	b, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, errors.Wrap(err, "read form value")
	}
	if len(b) > limit {
		return nil, bodyerr.ValueLength(limit)
	}

	return b, nil
}
