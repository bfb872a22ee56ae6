// Package bodyerr defines the typed failures raised while buffering and decoding request bodies. The message of every
// error is part of the external contract and is stable byte-for-byte.
package bodyerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies body ingestion failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindBufferLimit is raised when a spooling stream would exceed its total buffer limit.
	KindBufferLimit
	// KindHeaderLimit is raised when multipart section headers exceed the count or length limit.
	KindHeaderLimit
	// KindBoundaryNotFound is raised when the input ends before a multipart delimiter could be completed.
	KindBoundaryNotFound
	// KindFormLimit is raised when a form exceeds the value count, key length or value length limit.
	KindFormLimit
	// KindBodyLength is raised when a multipart section body exceeds its length limit.
	KindBodyLength
	// KindBoundaryLength is raised when a multipart boundary token is too long.
	KindBoundaryLength
	// KindInvalidData is raised for structurally malformed wire input.
	KindInvalidData
)

func (k Kind) String() string {
	switch k {
	case KindBufferLimit:
		return "BufferLimitExceeded"
	case KindHeaderLimit:
		return "HeaderLimitExceeded"
	case KindBoundaryNotFound:
		return "BoundaryNotFound"
	case KindFormLimit:
		return "FormLimitExceeded"
	case KindBodyLength:
		return "BodyLengthExceeded"
	case KindBoundaryLength:
		return "BoundaryLengthExceeded"
	case KindInvalidData:
		return "InvalidData"
	default:
		return "Unknown"
	}
}

// Error is a body ingestion failure with a stable message.
type Error struct {
	kind  Kind
	msg   string
	limit int64
}

// Sentinels for use with errors.Is. Matching is done on the kind, so any count or length variant of a failure
// matches its sentinel.
var (
	ErrBufferLimitExceeded = &Error{kind: KindBufferLimit, msg: "Buffer limit exceeded."}
	ErrHeaderLimitExceeded = &Error{kind: KindHeaderLimit, msg: "Multipart headers limit exceeded."}
	ErrBoundaryNotFound    = &Error{kind: KindBoundaryNotFound, msg: unexpectedEnd}
	ErrFormLimitExceeded   = &Error{kind: KindFormLimit, msg: "Form limit exceeded."}
	ErrBodyLengthExceeded  = &Error{kind: KindBodyLength, msg: "Multipart body length limit exceeded."}
	ErrBoundaryLength      = &Error{kind: KindBoundaryLength, msg: "Multipart boundary length limit exceeded."}
	ErrInvalidData         = &Error{kind: KindInvalidData, msg: "Invalid data."}
)

const unexpectedEnd = "Unexpected end of Stream, the content may have already been read by another component."

func (e *Error) Error() string { return e.msg }

// Kind reports the failure class.
func (e *Error) Kind() Kind { return e.kind }

// Limit reports the configured limit that was exceeded, or zero when the failure is not a limit violation.
func (e *Error) Limit() int64 { return e.limit }

// Is makes errors of the same kind match each other.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.kind == e.kind
}

func newf(k Kind, limit int64, format string, args ...any) *Error {
	return &Error{kind: k, limit: limit, msg: fmt.Sprintf(format, args...)}
}

// BufferLimit returns the failure for a spooling stream that would grow past limit bytes.
func BufferLimit(limit int64) *Error {
	return &Error{kind: KindBufferLimit, limit: limit, msg: ErrBufferLimitExceeded.msg}
}

// HeadersCount returns the failure for a multipart section with more than limit headers.
func HeadersCount(limit int) *Error {
	return newf(KindHeaderLimit, int64(limit), "Multipart headers count limit %d exceeded.", limit)
}

// LineLength returns the failure for multipart section headers longer than limit bytes in total.
func LineLength(limit int) *Error {
	return newf(KindHeaderLimit, int64(limit), "Line length limit %d exceeded.", limit)
}

// UnexpectedEnd returns the failure for input that ended before a delimiter was completed.
func UnexpectedEnd() *Error {
	return &Error{kind: KindBoundaryNotFound, msg: unexpectedEnd}
}

// ValueCount returns the failure for a form with more than limit values.
func ValueCount(limit int) *Error {
	return newf(KindFormLimit, int64(limit), "Form value count limit %d exceeded.", limit)
}

// KeyLength returns the failure for a form key longer than limit bytes.
func KeyLength(limit int) *Error {
	return newf(KindFormLimit, int64(limit), "Form key length limit %d exceeded.", limit)
}

// ValueLength returns the failure for a form value longer than limit bytes.
func ValueLength(limit int) *Error {
	return newf(KindFormLimit, int64(limit), "Form value length limit %d exceeded.", limit)
}

// BodyLength returns the failure for a multipart section body longer than limit bytes.
func BodyLength(limit int64) *Error {
	return newf(KindBodyLength, limit, "Multipart body length limit %d exceeded.", limit)
}

// BoundaryLength returns the failure for a multipart boundary longer than limit bytes.
func BoundaryLength(limit int) *Error {
	return newf(KindBoundaryLength, int64(limit), "Multipart boundary length limit %d exceeded.", limit)
}

// InvalidHeaderLine returns the failure for a multipart header line without a name/value separator.
func InvalidHeaderLine(line string) *Error {
	return newf(KindInvalidData, 0, "Invalid header line: %s", line)
}

// Invalid returns a malformed-input failure with the given message.
func Invalid(msg string) *Error {
	return &Error{kind: KindInvalidData, msg: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}
