package multipart

import (
	"mime"
	"strings"

	"github.com/advdv/bbody/bodyerr"
	"github.com/cockroachdb/errors"
)

// DefaultBoundaryLengthLimit is the longest boundary token accepted by [BoundaryFrom].
const DefaultBoundaryLengthLimit = 128

// ErrNotMultipart is returned by BoundaryFrom for content types other than multipart/*.
var ErrNotMultipart = errors.New("multipart: content type is not multipart")

// ErrMissingBoundary is returned by BoundaryFrom when the boundary parameter is absent or empty.
var ErrMissingBoundary = errors.New("multipart: missing boundary")

// StripQuotes removes one layer of surrounding double quotes.
func StripQuotes(token string) string {
	if len(token) >= 2 && token[0] == '"' && token[len(token)-1] == '"' {
		return token[1 : len(token)-1]
	}
	return token
}

// BoundaryFrom extracts the boundary token from a multipart Content-Type header value. A lengthLimit of zero or less
// selects DefaultBoundaryLengthLimit.
func BoundaryFrom(contentType string, lengthLimit int) (string, error) {
	if lengthLimit <= 0 {
		lengthLimit = DefaultBoundaryLengthLimit
	}

	typ, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", errors.Wrapf(err, "parse content type %q", contentType)
	}
	if !strings.HasPrefix(typ, "multipart/") {
		return "", ErrNotMultipart
	}

	boundary := StripQuotes(params["boundary"])
	switch {
	case boundary == "":
		return "", ErrMissingBoundary
	case len(boundary) > lengthLimit:
		return "", bodyerr.BoundaryLength(lengthLimit)
	}

	return boundary, nil
}

// delimiters holds the byte sequences a boundary token expands to.
type delimiters struct {
	start []byte // "--" + token, the first delimiter may lack the leading CRLF
	next  []byte // CRLF + "--" + token
}

func newDelimiters(token string) delimiters {
	next := make([]byte, 0, 4+len(token))
	next = append(next, "\r\n--"...)
	next = append(next, token...)

	return delimiters{start: next[2:], next: next}
}
