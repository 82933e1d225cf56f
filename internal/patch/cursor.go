package patch

import (
	"bytes"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/pkg/errors"
)

// BitCursor reads bits from a source window and writes them, possibly
// realigned, to an output buffer. Bits are buffered until a full byte is
// available, so callers can shift a record by any number of bits.
type BitCursor struct {
	r   *bits.Reader
	w   *bits.Writer
	out bytes.Buffer
}

func NewBitCursor(src []byte) *BitCursor {
	c := &BitCursor{r: bits.NewReader(bytes.NewReader(src))}
	c.w = bits.NewWriter(&c.out)
	return c
}

// ReadBits reads n bits, most significant first.
func (c *BitCursor) ReadBits(n int) uint {
	var v uint
	for n > 0 {
		k := min(n, 8)
		v = v<<k | c.r.Read(k)
		n -= k
	}
	return v
}

// WriteBits writes the low n bits of v.
func (c *BitCursor) WriteBits(n int, v uint) {
	for n > 0 {
		k := min(n, 8)
		n -= k
		chunk := (v >> n) & (uint(1)<<k - 1)
		c.w.Write(chunk, k)
	}
}

// Copy moves n bits from the source to the output unchanged.
func (c *BitCursor) Copy(n int) {
	for n > 0 {
		k := min(n, 8)
		c.WriteBits(k, c.ReadBits(k))
		n -= k
	}
}

// Bytes flushes pending bits, zero padding the last byte, and returns the
// output.
func (c *BitCursor) Bytes() ([]byte, error) {
	c.w.Flush()
	if err := c.r.AccError(); err != nil {
		return nil, errors.Wrap(err, "read past end of record")
	}
	if err := c.w.AccError(); err != nil {
		return nil, errors.Wrap(err, "write record")
	}
	return c.out.Bytes(), nil
}
