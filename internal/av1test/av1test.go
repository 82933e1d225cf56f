// Package av1test builds AV1 OBU streams and IVF files for tests.
package av1test

import (
	"encoding/binary"

	"github.com/autobrr/go-av1level/internal/ivf"
	"github.com/autobrr/go-av1level/internal/obu"
)

// AppendOBU appends an OBU with obu_has_size_field set and no extension.
func AppendOBU(dst []byte, t obu.Type, payload []byte) []byte {
	dst = append(dst, byte(t)<<3|0x02)
	dst = obu.AppendLEB128(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// IVFHeader encodes h in its 32 byte on-disk form. A zero HeaderLen is
// written as the standard header size.
func IVFHeader(h ivf.Header) []byte {
	buf := make([]byte, ivf.HeaderSize)
	copy(buf[0:4], "DKIF")
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	headerLen := h.HeaderLen
	if headerLen == 0 {
		headerLen = ivf.HeaderSize
	}
	binary.LittleEndian.PutUint16(buf[6:8], headerLen)
	copy(buf[8:12], h.FourCC)
	binary.LittleEndian.PutUint16(buf[12:14], h.Width)
	binary.LittleEndian.PutUint16(buf[14:16], h.Height)
	binary.LittleEndian.PutUint32(buf[16:20], h.Rate)
	binary.LittleEndian.PutUint32(buf[20:24], h.Scale)
	binary.LittleEndian.PutUint32(buf[24:28], h.FrameCount)
	return buf
}

// AppendIVFFrame appends one frame record (size, pts, data).
func AppendIVFFrame(dst []byte, pts uint64, data []byte) []byte {
	var hdr [ivf.FrameHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint64(hdr[4:12], pts)
	dst = append(dst, hdr[:]...)
	return append(dst, data...)
}
