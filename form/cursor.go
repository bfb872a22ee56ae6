package form

import (
	"github.com/advdv/bbody/bodyerr"
	"github.com/advdv/bbody/internal/utf8x"
)

// Cursor is the decoding state between chunks: the pair being built and any '%' escape that is not complete yet.
// The zero value is not usable, create one with NewCursor.
type Cursor struct {
	keyLimit   int
	valueLimit int
	dec        utf8x.Decoder

	key, value       []byte // decoded so far
	keyLen, valueLen int    // encoded bytes seen so far
	inValue          bool

	esc  [2]byte // '%' and at most one hex digit awaiting completion
	escN int
}

// NewCursor inits a cursor enforcing the key and value length limits of opts.
func NewCursor(opts Options) Cursor {
	return Cursor{
		keyLimit:   opts.KeyLengthLimit,
		valueLimit: opts.ValueLengthLimit,
		dec:        utf8x.NewDecoder(opts.Encoding),
	}
}

// Pending reports whether a pair or escape is in progress.
func (c *Cursor) Pending() bool { return c.inValue || c.keyLen > 0 }

// Feed decodes p, appending completed pairs to acc. It returns the number of bytes consumed, which is less than
// len(p) only when an error occurred: the violating byte is the last one consumed.
func (c *Cursor) Feed(p []byte, acc *Accumulator) (int, error) {
	for i, b := range p {
		var err error
		switch {
		case b == '&':
			err = c.complete(acc)
		case b == '=' && !c.inValue:
			c.flushEscape()
			c.inValue = true
		default:
			err = c.raw(b)
		}

		if err != nil {
			return i + 1, err
		}
	}

	return len(p), nil
}

// Finish completes the pair in progress at the end of input.
func (c *Cursor) Finish(acc *Accumulator) error {
	return c.complete(acc)
}

// raw accepts one encoded byte of the current key or value.
func (c *Cursor) raw(b byte) error {
	if c.inValue {
		c.valueLen++
		if c.valueLimit > 0 && c.valueLen > c.valueLimit {
			return bodyerr.ValueLength(c.valueLimit)
		}
	} else {
		c.keyLen++
		if c.keyLimit > 0 && c.keyLen > c.keyLimit {
			return bodyerr.KeyLength(c.keyLimit)
		}
	}

	c.decode(b)
	return nil
}

func (c *Cursor) decode(b byte) {
	switch c.escN {
	case 1:
		if isHex(b) {
			c.esc[1], c.escN = b, 2
			return
		}
		c.flushEscape()
	case 2:
		if isHex(b) {
			c.emit(unhex(c.esc[1])<<4 | unhex(b))
			c.escN = 0
			return
		}
		c.flushEscape()
	}

	switch b {
	case '%':
		c.esc[0], c.escN = b, 1
	case '+':
		c.emit(' ')
	default:
		c.emit(b)
	}
}

// flushEscape passes an incomplete escape through literally.
func (c *Cursor) flushEscape() {
	for i := range c.escN {
		c.emit(c.esc[i])
	}
	c.escN = 0
}

func (c *Cursor) emit(b byte) {
	if c.inValue {
		c.value = append(c.value, b)
	} else {
		c.key = append(c.key, b)
	}
}

// complete appends the pair in progress, if any, and resets the cursor for the next one.
func (c *Cursor) complete(acc *Accumulator) error {
	c.flushEscape()
	if !c.Pending() {
		return nil
	}

	key, err := c.dec.String(c.key)
	if err != nil {
		return err
	}
	value, err := c.dec.String(c.value)
	if err != nil {
		return err
	}

	c.key, c.value = c.key[:0], c.value[:0]
	c.keyLen, c.valueLen = 0, 0
	c.inValue = false

	return acc.Append(key, value)
}

func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func unhex(b byte) byte {
	switch {
	case b >= 'a':
		return b - 'a' + 10
	case b >= 'A':
		return b - 'A' + 10
	default:
		return b - '0'
	}
}
