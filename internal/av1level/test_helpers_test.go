package av1level

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/go-av1level/internal/av1test"
	"github.com/autobrr/go-av1level/internal/ivf"
	"github.com/autobrr/go-av1level/internal/obu"
)

const tileBytes = 1500

type bitBuf struct {
	buf bytes.Buffer
	w   *bits.Writer
}

func newBitBuf() *bitBuf {
	b := &bitBuf{}
	b.w = bits.NewWriter(&b.buf)
	return b
}

func (b *bitBuf) put(v uint, n int) *bitBuf {
	b.w.Write(v, n)
	return b
}

// bytes appends trailing bits and returns the header.
func (b *bitBuf) bytes() []byte {
	b.w.Write(1, 1)
	b.w.Flush()
	return b.buf.Bytes()
}

// testSequence is a 640x360 8-bit 4:2:0 sequence with 7 order hint bits
// and no screen content tools.
func testSequence(levelIdx uint8) *obu.SequenceHeader {
	return &obu.SequenceHeader{
		OperatingPoints: []obu.OperatingPoint{{SeqLevelIdx: levelIdx}},
		FrameWidthBits:  10,
		FrameHeightBits: 9,
		MaxFrameWidth:   640,
		MaxFrameHeight:  360,
		EnableOrderHint: true,
		OrderHintBits:   7,
		EnableCdef:      true,
		ColorConfig:     obu.ColorConfig{BitDepth: 8, SubsamplingX: true, SubsamplingY: true},
	}
}

func keyFrameHeader() []byte {
	return newBitBuf().
		put(0, 1).put(0, 2).put(1, 1). // show_existing, KEY_FRAME, show_frame
		put(0, 1).                     // disable_cdf_update
		put(0, 1).put(0, 7).           // frame_size_override, order_hint
		put(0, 1).                     // render_and_frame_size_different
		put(0, 1).                     // disable_frame_end_update_cdf
		put(1, 1).put(0, 1).put(0, 1). // uniform, one tile
		bytes()
}

func interFrameHeader(orderHint uint) []byte {
	b := newBitBuf().
		put(0, 1).put(1, 2).put(1, 1). // show_existing, INTER_FRAME, show_frame
		put(0, 1).                     // error_resilient_mode
		put(0, 1).                     // disable_cdf_update
		put(0, 1).put(orderHint, 7).   // frame_size_override, order_hint
		put(0, 3).put(0x01, 8).        // primary_ref_frame, refresh_frame_flags
		put(0, 1)                      // frame_refs_short_signaling
	for i := 0; i < 7; i++ {
		b.put(0, 3)
	}
	return b.
		put(0, 1).                     // render_and_frame_size_different
		put(1, 1).put(1, 1).put(0, 1). // high precision mv, filter switchable, motion mode
		put(0, 1).                     // disable_frame_end_update_cdf
		put(1, 1).put(0, 1).put(0, 1). // uniform, one tile
		bytes()
}

type fixture struct {
	header   ivf.Header
	sequence *obu.SequenceHeader
	units    int
	// repeat the sequence header every n units when > 0
	repeat int
}

func newFixture(levelIdx uint8, units int) fixture {
	return fixture{
		header:   ivf.Header{FourCC: ivf.FourCCAV1, Width: 640, Height: 360, Rate: 30, Scale: 1, FrameCount: uint32(units)},
		sequence: testSequence(levelIdx),
		units:    units,
	}
}

func (f fixture) bytes(t *testing.T) []byte {
	t.Helper()
	seq, err := av1test.MarshalSequenceHeader(f.sequence)
	require.NoError(t, err)

	data := av1test.IVFHeader(f.header)
	for i := 0; i < f.units; i++ {
		tu := av1test.AppendOBU(nil, obu.TypeTemporalDelimiter, nil)
		if i == 0 || (f.repeat > 0 && i%f.repeat == 0) {
			tu = av1test.AppendOBU(tu, obu.TypeSequenceHeader, seq)
		}
		var hdr []byte
		if i == 0 {
			hdr = keyFrameHeader()
		} else {
			hdr = interFrameHeader(uint(i & 0x7f))
		}
		frame := append(hdr, make([]byte, tileBytes)...)
		tu = av1test.AppendOBU(tu, obu.TypeFrame, frame)
		data = av1test.AppendIVFFrame(data, uint64(i), tu)
	}
	return data
}

func (f fixture) write(t *testing.T) string {
	t.Helper()
	return writeFile(t, f.bytes(t))
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.ivf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
