package bbody

import (
	"fmt"
	"net/http"

	"github.com/advdv/bbody/bodyerr"
	"github.com/advdv/bbody/multipart"
	"github.com/cockroachdb/errors"
)

// Code is an error code that mirrors the http status codes. It can be used to create errors to pass around across
// middleware layers to handle errors structurally.
type Code int

const (
	CodeUnknown                     Code = 0
	CodeBadRequest                  Code = http.StatusBadRequest                  // RFC 9110, 15.5.1
	CodeUnauthorized                Code = http.StatusUnauthorized                // RFC 9110, 15.5.2
	CodeForbidden                   Code = http.StatusForbidden                   // RFC 9110, 15.5.4
	CodeNotFound                    Code = http.StatusNotFound                    // RFC 9110, 15.5.5
	CodeMethodNotAllowed            Code = http.StatusMethodNotAllowed            // RFC 9110, 15.5.6
	CodeRequestTimeout              Code = http.StatusRequestTimeout              // RFC 9110, 15.5.9
	CodeLengthRequired              Code = http.StatusLengthRequired              // RFC 9110, 15.5.12
	CodeRequestEntityTooLarge       Code = http.StatusRequestEntityTooLarge       // RFC 9110, 15.5.14
	CodeUnsupportedMediaType        Code = http.StatusUnsupportedMediaType        // RFC 9110, 15.5.16
	CodeUnprocessableEntity         Code = http.StatusUnprocessableEntity         // RFC 9110, 15.5.21
	CodeRequestHeaderFieldsTooLarge Code = http.StatusRequestHeaderFieldsTooLarge // RFC 6585, 5

	CodeInternalServerError Code = http.StatusInternalServerError // RFC 9110, 15.6.1
	CodeNotImplemented      Code = http.StatusNotImplemented      // RFC 9110, 15.6.2
	CodeServiceUnavailable  Code = http.StatusServiceUnavailable  // RFC 9110, 15.6.4
	CodeInsufficientStorage Code = http.StatusInsufficientStorage // RFC 4918, 11.5
)

// Error describes an http error.
type Error struct {
	code Code
	err  error
}

// NewError inits a new error given the error code.
func NewError(c Code, underlying error) *Error {
	return &Error{c, underlying}
}

func (e *Error) Code() Code { return e.code }
func (e *Error) Error() string {
	status := http.StatusText(int(e.Code()))
	if status == "" {
		status = "Unknown"
	}

	return fmt.Sprintf("%s: %s", status, e.err.Error())
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.err }

// CodeOf returns the error's status code if it is or wraps an [*Error]. Body ingestion failures map to the status a
// client should see: limit violations to 413, malformed bodies to 400 and unsupported content types to 415. Any
// other error is [CodeUnknown].
func CodeOf(err error) Code {
	if herr, ok := asError(err); ok {
		return herr.Code()
	}

	switch bodyerr.KindOf(err) {
	case bodyerr.KindBufferLimit, bodyerr.KindFormLimit, bodyerr.KindBodyLength, bodyerr.KindHeaderLimit:
		return CodeRequestEntityTooLarge
	case bodyerr.KindBoundaryNotFound, bodyerr.KindBoundaryLength, bodyerr.KindInvalidData:
		return CodeBadRequest
	case bodyerr.KindUnknown:
	}

	switch {
	case errors.Is(err, multipart.ErrNotMultipart), errors.Is(err, ErrUnsupportedContentType):
		return CodeUnsupportedMediaType
	case errors.Is(err, multipart.ErrMissingBoundary):
		return CodeBadRequest
	}

	return CodeUnknown
}

// asError uses errors.As to unwrap any error and look for an *Error.
func asError(err error) (*Error, bool) {
	var herr *Error
	ok := errors.As(err, &herr)
	return herr, ok
}
