// Package obu parses the subset of AV1 OBU syntax needed to measure level
// constraints: OBU headers, sequence headers, frame headers up to tile_info,
// and tile list OBUs.
package obu

import (
	"bytes"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/pkg/errors"

	"github.com/autobrr/go-av1level/internal/errs"
)

type Type uint8

const (
	TypeSequenceHeader       Type = 1
	TypeTemporalDelimiter    Type = 2
	TypeFrameHeader          Type = 3
	TypeTileGroup            Type = 4
	TypeMetadata             Type = 5
	TypeFrame                Type = 6
	TypeRedundantFrameHeader Type = 7
	TypeTileList             Type = 8
	TypePadding              Type = 15
)

func (t Type) String() string {
	switch t {
	case TypeSequenceHeader:
		return "OBU_SEQUENCE_HEADER"
	case TypeTemporalDelimiter:
		return "OBU_TEMPORAL_DELIMITER"
	case TypeFrameHeader:
		return "OBU_FRAME_HEADER"
	case TypeTileGroup:
		return "OBU_TILE_GROUP"
	case TypeMetadata:
		return "OBU_METADATA"
	case TypeFrame:
		return "OBU_FRAME"
	case TypeRedundantFrameHeader:
		return "OBU_REDUNDANT_FRAME_HEADER"
	case TypeTileList:
		return "OBU_TILE_LIST"
	case TypePadding:
		return "OBU_PADDING"
	default:
		return "OBU_RESERVED"
	}
}

// Header is a parsed obu_header plus the resolved payload size.
type Header struct {
	Type        Type
	HasExt      bool
	TemporalID  uint8
	SpatialID   uint8
	HasSize     bool
	HeaderLen   int
	PayloadSize int
}

// Len is the full OBU size including the header and size field.
func (h Header) Len() int {
	return h.HeaderLen + h.PayloadSize
}

// ParseHeader parses the OBU at the start of data. When obu_has_size_field
// is 0 the OBU extends to the end of data.
func ParseHeader(data []byte) (Header, error) {
	const op = "parse obu header"
	if len(data) < 1 {
		return Header{}, errs.New(errs.MalformedStream, op, "empty obu")
	}
	b := data[0]
	if b&0x80 != 0 {
		return Header{}, errs.New(errs.MalformedStream, op, "obu_forbidden_bit set")
	}
	h := Header{
		Type:      Type((b >> 3) & 0x0F),
		HasExt:    b&0x04 != 0,
		HasSize:   b&0x02 != 0,
		HeaderLen: 1,
	}
	if h.HasExt {
		if len(data) < 2 {
			return Header{}, errs.New(errs.MalformedStream, op, "truncated obu_extension_header")
		}
		h.TemporalID = data[1] >> 5
		h.SpatialID = (data[1] >> 3) & 0x03
		h.HeaderLen++
	}
	if h.HasSize {
		size, n, err := ReadLEB128(data[h.HeaderLen:])
		if err != nil {
			return Header{}, errs.Wrap(errs.MalformedStream, op, err)
		}
		h.HeaderLen += n
		h.PayloadSize = int(size)
	} else {
		h.PayloadSize = len(data) - h.HeaderLen
	}
	if h.PayloadSize < 0 || h.Len() > len(data) {
		return Header{}, errs.Newf(errs.MalformedStream, op, "%s payload of %d bytes exceeds the %d bytes available", h.Type, h.PayloadSize, len(data)-h.HeaderLen)
	}
	return h, nil
}

// ReadLEB128 decodes leb128() and returns the value and the bytes consumed.
func ReadLEB128(data []byte) (uint64, int, error) {
	var value uint64
	for i := 0; i < 8; i++ {
		if i >= len(data) {
			return 0, 0, errors.New("truncated leb128")
		}
		value |= uint64(data[i]&0x7F) << (7 * i)
		if data[i]&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, errors.New("leb128 longer than 8 bytes")
}

// AppendLEB128 appends the minimal leb128 encoding of v.
func AppendLEB128(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
			continue
		}
		return append(dst, b)
	}
}

// syntaxReader adds the AV1 descriptors (uvlc, ns) on top of bits.Reader.
type syntaxReader struct {
	*bits.Reader
}

func newSyntaxReader(payload []byte) syntaxReader {
	return syntaxReader{bits.NewReader(bytes.NewReader(payload))}
}

func (r syntaxReader) f(n int) uint32 {
	if n == 0 {
		return 0
	}
	return uint32(r.Read(n))
}

func (r syntaxReader) flag() bool {
	return r.ReadFlag()
}

func (r syntaxReader) uvlc() uint32 {
	leadingZeros := 0
	for r.AccError() == nil {
		if r.ReadFlag() {
			break
		}
		leadingZeros++
	}
	if leadingZeros >= 32 {
		return 1<<32 - 1
	}
	return r.f(leadingZeros) + (1 << leadingZeros) - 1
}

func (r syntaxReader) ns(n uint32) uint32 {
	w := 0
	for x := n; x != 0; x >>= 1 {
		w++
	}
	m := (uint32(1) << w) - n
	v := r.f(w - 1)
	if v < m {
		return v
	}
	extra := r.f(1)
	return (v << 1) - m + extra
}

func (r syntaxReader) err(op string) error {
	if err := r.AccError(); err != nil {
		return errs.Wrap(errs.MalformedStream, op, errors.Wrap(err, "bitstream ended early"))
	}
	return nil
}
