// Package multipart splits a multipart body into sections while it streams in. Sections are found by scanning for
// the boundary delimiter over a pooled sliding window, so a body is never held in memory as a whole and the same
// bytes parse identically however the source chunks them.
package multipart

import (
	"bytes"
	"context"
	"io"
	"math"
	"strings"

	"github.com/advdv/bbody/bodyerr"
	"github.com/advdv/bbody/chunk"
	"github.com/advdv/bbody/internal/utf8x"
	"github.com/advdv/bbody/paged"
	"github.com/cockroachdb/errors"
	"golang.org/x/net/http/httpguts"
)

const (
	// DefaultHeadersCountLimit is the most headers a section may carry.
	DefaultHeadersCountLimit = 16
	// DefaultHeadersLengthLimit is the most bytes the headers of a section may take, line terminators included.
	DefaultHeadersLengthLimit = 16 * 1024
)

// trailerLimit bounds the transport padding accepted between a delimiter and its line break.
const trailerLimit = 100

// Options configure a Reader.
type Options struct {
	// HeadersCountLimit caps the number of header lines per section. Zero or less means unlimited.
	HeadersCountLimit int
	// HeadersLengthLimit caps the total header bytes per section. Zero or less means unlimited.
	HeadersLengthLimit int
	// BodyLengthLimit caps the body bytes of each section. Zero or less means unlimited.
	BodyLengthLimit int64
	// Pool provides the scan window.
	Pool paged.Pool
}

// Option configures the Options.
type Option func(*Options)

// WithHeadersCountLimit sets the header count limit.
func WithHeadersCountLimit(n int) Option { return func(o *Options) { o.HeadersCountLimit = n } }

// WithHeadersLengthLimit sets the header length limit.
func WithHeadersLengthLimit(n int) Option { return func(o *Options) { o.HeadersLengthLimit = n } }

// WithBodyLengthLimit sets the per-section body length limit.
func WithBodyLengthLimit(n int64) Option { return func(o *Options) { o.BodyLengthLimit = n } }

// WithPool sets the pool the scan window is rented from.
func WithPool(p paged.Pool) Option { return func(o *Options) { o.Pool = p } }

type state int

const (
	stateExpectStartBoundary state = iota
	stateReadingHeaders
	stateReadingBody
	stateExpectBoundaryAgain
	stateDone
)

// Reader parses sections out of a multipart body. It is not safe for concurrent use.
type Reader struct {
	opts  Options
	src   chunk.Source
	delim delimiters
	win   *window

	state    state
	err      error // sticky, set once the input can no longer be parsed
	scanFrom int   // unread bytes before this offset cannot start a delimiter
	gen      int   // identifies the current section body
	bodyRead int64 // body bytes handed out for the current section
	line     []byte
}

// NewReader inits a reader for sections separated by boundary. One layer of surrounding quotes is removed from the
// boundary. The first delimiter is matched with or without a leading line break, bytes before it are discarded.
func NewReader(boundary string, src chunk.Source, opts ...Option) *Reader {
	o := Options{
		HeadersCountLimit:  DefaultHeadersCountLimit,
		HeadersLengthLimit: DefaultHeadersLengthLimit,
		Pool:               paged.DefaultPool,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Pool == nil {
		o.Pool = paged.DefaultPool
	}

	delim := newDelimiters(StripQuotes(boundary))

	return &Reader{
		opts:  o,
		src:   src,
		delim: delim,
		win:   newWindow(o.Pool, 2*len(delim.next)+trailerLimit),
	}
}

// NextSection returns the next section, or nil (and no error) when the terminal delimiter was consumed. Any unread
// body of the previous section is discarded first. The returned section's body reads with ctx. A header limit
// violation is returned without making the reader unusable, the next call resumes at the following delimiter.
func (r *Reader) NextSection(ctx context.Context) (*Section, error) {
	if r.state == stateDone {
		return nil, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.win.buf == nil {
		return nil, ErrReaderClosed
	}

	if r.state == stateReadingBody || r.state == stateExpectStartBoundary {
		if err := r.skip(ctx); err != nil {
			return nil, r.fail(err)
		}
	}

	final, err := r.consumeDelimiter(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	if final {
		r.state = stateDone
		return nil, nil
	}

	r.state = stateReadingHeaders
	hdr, err := r.readHeaders(ctx)
	if err != nil {
		if bodyerr.KindOf(err) != bodyerr.KindHeaderLimit {
			return nil, r.fail(err)
		}
		r.beginBody()
		return nil, err
	}

	r.beginBody()
	sec := &Section{Header: hdr, offset: r.win.offset}
	sec.Body = &body{r: r, gen: r.gen, ctx: ctx}

	return sec, nil
}

// Close returns the scan window to its pool. Sections obtained earlier become unreadable.
func (r *Reader) Close() error {
	r.win.release()
	r.state = stateDone
	return nil
}

// ErrReaderClosed is returned when reading after Close.
var ErrReaderClosed = errors.New("multipart: reader is closed")

func (r *Reader) fail(err error) error {
	r.err = err
	return err
}

func (r *Reader) beginBody() {
	r.gen++
	r.bodyRead = 0
	r.state = stateReadingBody
}

// current returns the delimiter searched for in the current state.
func (r *Reader) current() []byte {
	if r.state == stateExpectStartBoundary {
		return r.delim.start
	}
	return r.delim.next
}

// skip discards bytes up to the next delimiter.
func (r *Reader) skip(ctx context.Context) error {
	for {
		_, err := r.advance(ctx, nil)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// advance moves body bytes out of the window and into p, up to (not including) the next delimiter. With a nil p
// the bytes are discarded. It returns io.EOF once the window starts with the delimiter.
func (r *Reader) advance(ctx context.Context, p []byte) (int, error) {
	delim := r.current()
	limit := r.opts.BodyLengthLimit
	if r.state != stateReadingBody {
		limit = 0
	}

	for {
		data := r.win.bytes()

		var end int
		if idx := bytes.Index(data[r.scanFrom:], delim); idx >= 0 {
			end = r.scanFrom + idx
		} else {
			end = partialStart(data, delim, r.scanFrom)
		}
		r.scanFrom = end

		if end == 0 {
			if len(data) >= len(delim) {
				if r.state == stateReadingBody {
					r.state = stateExpectBoundaryAgain
				}
				return 0, io.EOF
			}

			if err := r.win.fill(ctx, r.src); err != nil {
				if errors.Is(err, io.EOF) {
					return 0, bodyerr.UnexpectedEnd()
				}
				return 0, err
			}
			continue
		}

		n := end
		if p != nil {
			n = copy(p, data[:end])
		}
		if limit > 0 && r.bodyRead+int64(n) > limit {
			return 0, bodyerr.BodyLength(limit)
		}

		r.bodyRead += int64(n)
		r.win.discard(n)
		r.scanFrom -= n

		return n, nil
	}
}

// partialStart returns the offset of the longest suffix of data that is a prefix of delim, ignoring offsets before
// from. It returns len(data) when no suffix can start a delimiter.
func partialStart(data, delim []byte, from int) int {
	i := max(from, len(data)-len(delim)+1)
	for i < len(data) {
		j := bytes.IndexByte(data[i:], delim[0])
		if j < 0 {
			break
		}
		i += j
		if bytes.HasPrefix(delim, data[i:]) {
			return i
		}
		i++
	}
	return len(data)
}

// consumeDelimiter consumes the delimiter at the start of the window and the rest of its line. It reports whether
// the delimiter was the terminal one.
func (r *Reader) consumeDelimiter(ctx context.Context) (bool, error) {
	delim := r.current()
	r.win.discard(len(delim))
	r.scanFrom = 0

	n, err := r.win.ensure(ctx, r.src, 2)
	if err != nil {
		return false, err
	}
	if n >= 2 && r.win.bytes()[0] == '-' && r.win.bytes()[1] == '-' {
		r.win.discard(2)
		return true, nil
	}

	line, _, err := r.readLine(ctx, trailerLimit)
	if err != nil {
		return false, err
	}
	if len(bytes.Trim(line, " \t")) > 0 {
		return false, bodyerr.Invalid("Invalid multipart delimiter line.")
	}

	return false, nil
}

// readHeaders reads header lines until the empty line that ends them.
func (r *Reader) readHeaders(ctx context.Context) (Header, error) {
	var (
		hdr   Header
		count int
		total int
	)

	for {
		remaining := math.MaxInt
		if r.opts.HeadersLengthLimit > 0 {
			remaining = r.opts.HeadersLengthLimit - total
		}

		line, raw, err := r.readLine(ctx, remaining)
		if err != nil {
			return hdr, err
		}
		total += raw

		if len(line) == 0 {
			return hdr, nil
		}
		if r.opts.HeadersCountLimit > 0 && count >= r.opts.HeadersCountLimit {
			return hdr, bodyerr.HeadersCount(r.opts.HeadersCountLimit)
		}
		count++

		text := utf8x.Decode(line)
		name, value, ok := strings.Cut(text, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || !httpguts.ValidHeaderFieldName(name) {
			return hdr, bodyerr.InvalidHeaderLine(text)
		}

		hdr.Add(name, strings.TrimSpace(value))
	}
}

// readLine reads one line of at most limit bytes, terminator included. It returns the line without its terminator
// and the raw length consumed.
func (r *Reader) readLine(ctx context.Context, limit int) ([]byte, int, error) {
	r.line = r.line[:0]

	for {
		data := r.win.bytes()
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			if len(r.line)+i+1 > limit {
				return nil, 0, bodyerr.LineLength(limit)
			}

			r.line = append(r.line, data[:i+1]...)
			r.win.discard(i + 1)

			raw := len(r.line)
			line := bytes.TrimSuffix(r.line[:raw-1], []byte{'\r'})
			return line, raw, nil
		}

		if len(r.line)+len(data) > limit {
			return nil, 0, bodyerr.LineLength(limit)
		}
		r.line = append(r.line, data...)
		r.win.discard(len(data))

		if err := r.win.fill(ctx, r.src); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, 0, bodyerr.UnexpectedEnd()
			}
			return nil, 0, err
		}
	}
}
