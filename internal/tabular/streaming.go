package tabular

// streaming.go wraps raw upload readers so the CSV layer only ever sees
// clean UTF-8 without a byte-order mark. Windows exports routinely carry
// a BOM and the odd Latin-1 byte; both would otherwise corrupt the first
// header cell or abort the parse.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewCleanReader returns a reader that skips a leading UTF-8 BOM and
// replaces every invalid UTF-8 byte with '?'. Memory use is bounded by
// the bufio buffer regardless of input size.
func NewCleanReader(r io.Reader) io.Reader {
	return &cleanReader{br: bufio.NewReader(r)}
}

type cleanReader struct {
	br         *bufio.Reader
	bomChecked bool

	// pending holds an encoded rune that did not fit in the caller's
	// buffer on the previous read.
	pending []byte
}

func (c *cleanReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !c.bomChecked {
		c.bomChecked = true
		if head, err := c.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			c.br.Discard(len(utf8BOM))
		}
	}

	n := 0
	if len(c.pending) > 0 {
		n = copy(p, c.pending)
		c.pending = c.pending[n:]
		if len(c.pending) > 0 {
			return n, nil
		}
	}

	for n < len(p) {
		r, size, err := c.br.ReadRune()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		if r == utf8.RuneError && size == 1 {
			// Invalid byte. '?' keeps the output the same length,
			// which matters for position-stable replacement.
			p[n] = '?'
			n++
			continue
		}

		var buf [utf8.UTFMax]byte
		m := utf8.EncodeRune(buf[:], r)
		if n+m > len(p) {
			c.pending = append(c.pending[:0], buf[:m]...)
			return n, nil
		}
		n += copy(p[n:], buf[:m])
	}

	return n, nil
}
