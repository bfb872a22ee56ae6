package multipart

import (
	"mime"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Field is one header name with its raw values in arrival order.
type Field struct {
	Name   string
	Values []string
}

// Header holds the headers of a section in arrival order. Names are matched case-insensitively.
type Header struct {
	fields []Field
}

// Add appends value to the values of name.
func (h *Header) Add(name, value string) {
	if _, idx, ok := lo.FindIndexOf(h.fields, func(f Field) bool { return strings.EqualFold(f.Name, name) }); ok {
		h.fields[idx].Values = append(h.fields[idx].Values, value)
		return
	}

	h.fields = append(h.fields, Field{Name: name, Values: []string{value}})
}

// Values returns all values of name, or nil.
func (h Header) Values(name string) []string {
	f, ok := lo.Find(h.fields, func(f Field) bool { return strings.EqualFold(f.Name, name) })
	if !ok {
		return nil
	}
	return f.Values
}

// Get returns the first value of name, or an empty string.
func (h Header) Get(name string) string {
	if vs := h.Values(name); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Names returns the header names in arrival order.
func (h Header) Names() []string {
	if len(h.fields) == 0 {
		return nil
	}
	return lo.Map(h.fields, func(f Field, _ int) string { return f.Name })
}

// Fields returns the header fields in arrival order.
func (h Header) Fields() []Field { return h.fields }

// Len returns the number of distinct header names.
func (h Header) Len() int { return len(h.fields) }

// ContentDisposition is the parsed Content-Disposition header of a section.
type ContentDisposition struct {
	Type     string
	Name     string
	FileName string
	Params   map[string]string
}

// IsFile reports whether the section carries a file (a filename or filename* parameter is present).
func (cd ContentDisposition) IsFile() bool {
	_, plain := cd.Params["filename"]
	return plain || cd.FileName != ""
}

// IsFormData reports whether the disposition is "form-data".
func (cd ContentDisposition) IsFormData() bool { return strings.EqualFold(cd.Type, "form-data") }

// ParseContentDisposition parses a Content-Disposition header value.
func ParseContentDisposition(v string) (ContentDisposition, error) {
	typ, params, err := mime.ParseMediaType(v)
	if err != nil {
		return ContentDisposition{}, errors.Wrapf(err, "parse content disposition %q", v)
	}

	return ContentDisposition{
		Type:     typ,
		Name:     params["name"],
		FileName: params["filename"],
		Params:   params,
	}, nil
}
