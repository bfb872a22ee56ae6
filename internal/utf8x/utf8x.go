// Package utf8x decodes attacker controlled bytes as text. Invalid UTF-8 is replaced with U+FFFD, one replacement per
// maximal invalid subpart (the Unicode "substitution of maximal subparts" practice), so a truncated but otherwise
// well-started sequence costs a single replacement while stray bytes cost one each.
package utf8x

import (
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/encoding"
)

const replacement = "�"

// accept ranges of the second byte, indexed by lead byte class.
var second = [...][2]byte{
	0: {0x80, 0xBF},
	1: {0xA0, 0xBF}, // E0
	2: {0x80, 0x9F}, // ED
	3: {0x90, 0xBF}, // F0
	4: {0x80, 0x8F}, // F4
}

// lead reports the sequence length for lead byte c and the second byte class, or zero for bytes that cannot start
// a sequence.
func lead(c byte) (size, class int) {
	switch {
	case c >= 0xC2 && c <= 0xDF:
		return 2, 0
	case c == 0xE0:
		return 3, 1
	case c == 0xED:
		return 3, 2
	case c >= 0xE1 && c <= 0xEF:
		return 3, 0
	case c == 0xF0:
		return 4, 3
	case c == 0xF4:
		return 4, 4
	case c >= 0xF1 && c <= 0xF3:
		return 4, 0
	default:
		return 0, 0
	}
}

// Decode returns b as a valid UTF-8 string.
func Decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b) + 8)

	for i := 0; i < len(b); {
		c := b[i]
		if c < utf8.RuneSelf {
			sb.WriteByte(c)
			i++
			continue
		}

		size, class := lead(c)
		if size == 0 {
			sb.WriteString(replacement)
			i++
			continue
		}

		valid := 1
		for valid < size && i+valid < len(b) {
			lo, hi := byte(0x80), byte(0xBF)
			if valid == 1 {
				lo, hi = second[class][0], second[class][1]
			}

			if cb := b[i+valid]; cb < lo || cb > hi {
				break
			}
			valid++
		}

		if valid < size {
			sb.WriteString(replacement)
			i += valid
			continue
		}

		sb.Write(b[i : i+size])
		i += size
	}

	return sb.String()
}

// Decoder turns raw bytes into text under a configurable text encoding.
type Decoder struct {
	enc encoding.Encoding
}

// NewDecoder inits a decoder. A nil encoding selects UTF-8 with maximal subpart replacement. Any other encoding
// applies its own replacement behaviour.
func NewDecoder(enc encoding.Encoding) Decoder {
	return Decoder{enc: enc}
}

// String decodes b.
func (d Decoder) String(b []byte) (string, error) {
	if d.enc == nil {
		return Decode(b), nil
	}

	out, err := d.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrap(err, "decode text")
	}

	return string(out), nil
}
