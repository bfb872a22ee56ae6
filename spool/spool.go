// Package spool buffers bodies of unknown size in memory and overflows them to a private temporary file once a
// memory threshold would be exceeded. [WriteStream] spools bytes written by the caller before they are forwarded to a
// final destination, [ReadStream] spools bytes read from a non-seekable source so they can be replayed.
package spool

import (
	"os"

	"github.com/advdv/bbody/bodyerr"
	"github.com/advdv/bbody/paged"
	"github.com/cockroachdb/errors"
	"go.uber.org/multierr"
)

// DefaultMemoryThreshold is the number of bytes held in memory before spilling to disk.
const DefaultMemoryThreshold = 64 * 1024

// ErrClosed is returned when a stream is used after Close, or after a limit violation made it unusable.
var ErrClosed = errors.New("spool: stream is closed")

// TempDirFunc resolves the directory for the temporary file. It is only called when the first spill happens.
type TempDirFunc func() (string, error)

// OSTempDir resolves to os.TempDir.
func OSTempDir() (string, error) { return os.TempDir(), nil }

// Options configure a spooling stream.
type Options struct {
	// MemoryThreshold is the most bytes kept in memory between operations.
	MemoryThreshold int
	// BufferLimit caps memory plus disk bytes. Zero or less means unlimited.
	BufferLimit int64
	// TempDir resolves the directory for the spill file.
	TempDir TempDirFunc
	// Pool provides the memory pages.
	Pool paged.Pool
	// OnSpill is called with the file name when the spill file is created.
	OnSpill func(name string)
}

// Option configures the Options.
type Option func(*Options)

// WithMemoryThreshold sets the in-memory threshold in bytes.
func WithMemoryThreshold(n int) Option {
	return func(o *Options) { o.MemoryThreshold = n }
}

// WithBufferLimit sets the hard cap over both tiers.
func WithBufferLimit(n int64) Option {
	return func(o *Options) { o.BufferLimit = n }
}

// WithTempDir sets the resolver for the spill directory.
func WithTempDir(f TempDirFunc) Option {
	return func(o *Options) { o.TempDir = f }
}

// WithPool sets the page pool for the memory tier.
func WithPool(p paged.Pool) Option {
	return func(o *Options) { o.Pool = p }
}

// WithOnSpill registers a callback for the creation of the spill file.
func WithOnSpill(f func(name string)) Option {
	return func(o *Options) { o.OnSpill = f }
}

// WithOptions copies a complete Options value, zero fields select defaults.
func WithOptions(src Options) Option {
	return func(o *Options) { *o = src }
}

func buildOptions(opts []Option) Options {
	o := Options{MemoryThreshold: DefaultMemoryThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	if o.MemoryThreshold < 0 {
		o.MemoryThreshold = 0
	}
	if o.TempDir == nil {
		o.TempDir = OSTempDir
	}
	if o.Pool == nil {
		o.Pool = paged.DefaultPool
	}

	return o
}

// tiers is the spool state shared by both streams: a memory tier and an optional disk tier. The complete content is
// the disk bytes followed by the memory bytes.
type tiers struct {
	opts Options
	mem  *paged.Buffer
	file *os.File
	disk int64
}

func newTiers(opts Options) tiers {
	return tiers{opts: opts, mem: paged.NewBuffer(opts.Pool)}
}

func (t *tiers) length() int64 { return t.disk + int64(t.mem.Len()) }

// add appends p under the overflow rule. A limit violation releases all resources before it is returned.
func (t *tiers) add(p []byte) error {
	n := int64(len(p))
	if limit := t.opts.BufferLimit; limit > 0 && t.length()+n > limit {
		if err := t.release(); err != nil {
			return errors.WithSecondaryError(bodyerr.BufferLimit(limit), err)
		}
		return bodyerr.BufferLimit(limit)
	}

	if t.mem.Len()+len(p) <= t.opts.MemoryThreshold {
		_, err := t.mem.Write(p)
		return err
	}

	if err := t.ensureFile(); err != nil {
		return err
	}

	moved, err := t.mem.MoveTo(t.file)
	t.disk += moved
	if err != nil {
		return errors.Wrap(err, "spill memory tier")
	}

	written, err := t.file.Write(p)
	t.disk += int64(written)
	if err != nil {
		return errors.Wrap(err, "spill chunk")
	}

	return nil
}

func (t *tiers) ensureFile() error {
	if t.file != nil {
		return nil
	}

	dir, err := t.opts.TempDir()
	if err != nil {
		return errors.Wrap(err, "resolve temp dir")
	}

	// CreateTemp picks a unique name and opens it with mode 0600 (owner read/write).
	f, err := os.CreateTemp(dir, "bbody-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create spill file")
	}

	t.file = f
	if t.opts.OnSpill != nil {
		t.opts.OnSpill(f.Name())
	}

	return nil
}

// readAt copies buffered bytes at off into p, replaying the disk tier before the memory tier. It returns the number
// of bytes copied, which is less than len(p) only at the buffered frontier.
func (t *tiers) readAt(p []byte, off int64) (int, error) {
	var n int
	if off < t.disk {
		want := min(int64(len(p)), t.disk-off)
		m, err := t.file.ReadAt(p[:want], off)
		n += m
		if err != nil && int64(m) < want {
			return n, errors.Wrap(err, "replay disk tier")
		}
		off += int64(m)
	}

	if n < len(p) && off >= t.disk {
		m, _ := t.mem.ReadAt(p[n:], off-t.disk) // io.EOF just marks the frontier
		n += m
	}

	return n, nil
}

func (t *tiers) fileName() string {
	if t.file == nil {
		return ""
	}
	return t.file.Name()
}

// release returns all pages and deletes the spill file. The file is removed at most once.
func (t *tiers) release() (err error) {
	t.mem.Reset()
	t.disk = 0

	if t.file == nil {
		return nil
	}

	f := t.file
	t.file = nil

	err = multierr.Append(err, f.Close())
	err = multierr.Append(err, os.Remove(f.Name()))

	return errors.Wrap(err, "release spill file")
}

// close releases everything and makes the memory tier unusable.
func (t *tiers) close() error {
	err := t.release()
	return multierr.Append(err, t.mem.Close())
}
