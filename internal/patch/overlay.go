package patch

import (
	"bytes"
	"io"
)

type edit struct {
	off  int64
	data []byte
}

// overlay keeps writes in memory on top of a read-only source. Reads see the
// latest write covering each byte.
type overlay struct {
	src   io.ReaderAt
	edits []edit
}

func (o *overlay) ReadAt(p []byte, off int64) (int, error) {
	n, err := o.src.ReadAt(p, off)
	end := off + int64(n)
	for _, e := range o.edits {
		lo := max(off, e.off)
		hi := min(end, e.off+int64(len(e.data)))
		if lo < hi {
			copy(p[lo-off:hi-off], e.data[lo-e.off:hi-e.off])
		}
	}
	return n, err
}

func (o *overlay) WriteAt(p []byte, off int64) (int, error) {
	o.edits = append(o.edits, edit{off: off, data: bytes.Clone(p)})
	return len(p), nil
}
