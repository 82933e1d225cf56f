// Package ivf demuxes AV1 streams stored in IVF containers.
package ivf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pkg/errors"

	"github.com/autobrr/go-av1level/internal/errs"
)

const (
	HeaderSize      = 32
	FrameHeaderSize = 12
	FourCCAV1       = "AV01"
)

var signature = []byte("DKIF")

// Header is the IVF file header. Rate and Scale form the timestamp
// timebase: one PTS tick lasts Scale/Rate seconds.
type Header struct {
	Version    uint16
	HeaderLen  uint16
	FourCC     string
	Width      uint16
	Height     uint16
	Rate       uint32
	Scale      uint32
	FrameCount uint32
}

// TimeScale is the number of PTS ticks per second.
func (h Header) TimeScale() float64 {
	if h.Scale == 0 {
		return float64(h.Rate)
	}
	return float64(h.Rate) / float64(h.Scale)
}

// Frame is one IVF frame. Offset is the file position of Data.
type Frame struct {
	Size   uint32
	PTS    uint64
	Offset int64
	Data   []byte
}

type Reader struct {
	ir     *ivfreader.IVFReader
	header Header
	offset int64
}

// NewReader validates the file header and positions the reader at the first
// frame.
func NewReader(r io.Reader) (*Reader, error) {
	const op = "read ivf header"
	br := bufio.NewReader(r)
	peek, err := br.Peek(HeaderSize)
	if !bytes.HasPrefix(peek, signature) {
		return nil, errs.Newf(errs.UnsupportedContainerFormat, op, "%s input is not supported, expected IVF", Sniff(peek))
	}
	if err != nil {
		return nil, errs.Wrap(errs.MalformedStream, op, errors.Wrap(err, "truncated file header"))
	}
	h := Header{
		Version:   binary.LittleEndian.Uint16(peek[4:6]),
		HeaderLen: binary.LittleEndian.Uint16(peek[6:8]),
	}

	ir, fh, err := ivfreader.NewWith(br)
	if err != nil {
		return nil, errs.Wrap(errs.MalformedStream, op, err)
	}
	h.FourCC = fh.FourCC
	h.Width = fh.Width
	h.Height = fh.Height
	h.Rate = fh.TimebaseDenominator
	h.Scale = fh.TimebaseNumerator
	h.FrameCount = fh.NumFrames
	if h.FourCC != FourCCAV1 {
		return nil, errs.Newf(errs.UnsupportedCodec, op, "fourcc %q is not supported, expected %s", h.FourCC, FourCCAV1)
	}
	return &Reader{ir: ir, header: h, offset: HeaderSize}, nil
}

func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next frame, or io.EOF after the last one.
func (r *Reader) Next() (Frame, error) {
	data, fh, err := r.ir.ParseNextFrame()
	if errors.Is(err, io.EOF) {
		return Frame{}, io.EOF
	}
	if err != nil {
		return Frame{}, errs.Wrap(errs.MalformedStream, "read ivf frame", errors.Wrapf(err, "frame at offset %d", r.offset))
	}
	f := Frame{
		Size:   fh.FrameSize,
		PTS:    fh.Timestamp,
		Offset: r.offset + FrameHeaderSize,
		Data:   data,
	}
	r.offset += FrameHeaderSize + int64(fh.FrameSize)
	return f, nil
}

// Sniff names the container format of header for diagnostics.
func Sniff(header []byte) string {
	switch {
	case len(header) == 0:
		return "Unknown"
	case bytes.HasPrefix(header, signature):
		return "IVF"
	case bytes.HasPrefix(header, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "Matroska"
	case len(header) >= 12 && string(header[4:8]) == "ftyp":
		return "MPEG-4"
	case len(header) > 188 && header[0] == 0x47 && header[188] == 0x47:
		return "MPEG-TS"
	case len(header) >= 2 && header[0] == 0x12 && header[1] == 0x00:
		return "AV1 OBU stream"
	}
	return "Unknown"
}
