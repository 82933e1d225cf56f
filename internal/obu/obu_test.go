package obu

import (
	"bytes"
	"testing"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/go-av1level/internal/errs"
)

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

func (b *bitBuf) flag(v bool) *bitBuf {
	if v {
		return b.put(1, 1)
	}
	return b.put(0, 1)
}

// ns writes v with the non-symmetric code used for tile sizes.
func (b *bitBuf) ns(n, v uint32) *bitBuf {
	w := 0
	for x := n; x != 0; x >>= 1 {
		w++
	}
	m := (uint32(1) << w) - n
	if v < m {
		return b.put(uint(v), w-1)
	}
	b.put(uint((v+m)>>1), w-1)
	return b.put(uint((v+m)&1), 1)
}

func (b *bitBuf) bytes() []byte {
	b.w.Write(1, 1)
	b.w.Flush()
	return b.buf.Bytes()
}

func hdSequence(levelIdx, tier uint8) *SequenceHeader {
	return &SequenceHeader{
		OperatingPoints:            []OperatingPoint{{SeqLevelIdx: levelIdx, SeqTier: tier}},
		FrameWidthBits:             11,
		FrameHeightBits:            11,
		MaxFrameWidth:              1920,
		MaxFrameHeight:             1080,
		EnableFilterIntra:          true,
		EnableIntraEdgeFilter:      true,
		EnableOrderHint:            true,
		EnableRefFrameMvs:          true,
		SeqForceScreenContentTools: SelectScreenContentTools,
		SeqForceIntegerMV:          SelectIntegerMV,
		OrderHintBits:              7,
		EnableCdef:                 true,
		ColorConfig: ColorConfig{
			BitDepth:                8,
			ColorPrimaries:          ColorUnspecified,
			TransferCharacteristics: ColorUnspecified,
			MatrixCoefficients:      ColorUnspecified,
			SubsamplingX:            true,
			SubsamplingY:            true,
		},
	}
}

func TestParseHeader(t *testing.T) {
	// 200 is 0xC8 0x01 in leb128.
	data := append([]byte{byte(TypeSequenceHeader)<<3 | 0x02, 0xC8, 0x01}, make([]byte, 200)...)
	h, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, TypeSequenceHeader, h.Type)
	assert.True(t, h.HasSize)
	assert.Equal(t, 3, h.HeaderLen)
	assert.Equal(t, 200, h.PayloadSize)
	assert.Equal(t, len(data), h.Len())

	// Extension header, no size field.
	h, err = ParseHeader([]byte{byte(TypeFrame)<<3 | 0x04, 0x48, 0xAA, 0xBB})
	require.NoError(t, err)
	assert.Equal(t, TypeFrame, h.Type)
	assert.Equal(t, uint8(2), h.TemporalID)
	assert.Equal(t, uint8(1), h.SpatialID)
	assert.Equal(t, 2, h.HeaderLen)
	assert.Equal(t, 2, h.PayloadSize)
}

func TestParseHeaderErrors(t *testing.T) {
	tests := map[string][]byte{
		"empty":         {},
		"forbidden bit": {0x80 | byte(TypeFrame)<<3 | 0x02, 0},
		"missing ext":   {byte(TypeFrame)<<3 | 0x04},
		"bad leb128":    {byte(TypeFrame)<<3 | 0x02, 0x80},
		"overrun":       {byte(TypeFrame)<<3 | 0x02, 0x05, 0x00},
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseHeader(data)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.MalformedStream))
		})
	}
}

func TestLEB128(t *testing.T) {
	for _, v := range []uint64{0, 127, 128, 16383, 16384, 1<<32 + 5} {
		enc := AppendLEB128(nil, v)
		got, n, err := ReadLEB128(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(enc), n)
	}
	_, _, err := ReadLEB128(bytes.Repeat([]byte{0xFF}, 9))
	assert.Error(t, err)
}

func TestParseSequenceHeaderHandWritten(t *testing.T) {
	b := newBitBuf().
		put(0, 3).put(0, 1).put(0, 1). // profile, still, reduced
		put(0, 1).put(0, 1).put(0, 5). // timing, initial display delay, op count
		put(0, 12).put(4, 5).          // idc, level 4 (no tier bit)
		put(10, 4).put(9, 4).put(1279, 11).put(719, 10).
		put(0, 1).put(0, 1).put(1, 1).put(1, 1).                     // frame ids, 128, filter intra, edge
		put(0, 4).put(0, 1).                                         // interintra..dual, order hint
		put(1, 1).put(1, 1).                                         // screen content select, integer mv select
		put(0, 3).                                                   // superres, cdef, restoration
		put(0, 1).put(0, 1).put(0, 1).put(0, 1).put(0, 2).put(0, 1). // color config
		put(0, 1)                                                    // film grain
	sh, err := ParseSequenceHeader(b.bytes())
	require.NoError(t, err)
	assert.Equal(t, uint32(1280), sh.MaxFrameWidth)
	assert.Equal(t, uint32(720), sh.MaxFrameHeight)
	assert.Equal(t, uint8(4), sh.SeqLevelIdx())
	assert.Equal(t, uint8(0), sh.SeqTier())
	assert.False(t, sh.EnableOrderHint)
	assert.Zero(t, sh.OrderHintBits)
	assert.Equal(t, uint8(8), sh.ColorConfig.BitDepth)
}

// keyFrameBits writes a shown key frame for hdSequence with 4x2 uniform
// tiles.
func keyFrameBits() []byte {
	return newBitBuf().
		put(0, 1).put(0, 2).put(1, 1).           // show_existing, KEY_FRAME, show_frame
		put(0, 1).put(0, 1).                     // disable_cdf_update, allow_screen_content_tools
		put(0, 1).put(0, 7).                     // frame_size_override, order_hint
		put(0, 1).                               // render_and_frame_size_different
		put(0, 1).                               // disable_frame_end_update_cdf
		put(1, 1).put(1, 1).put(1, 1).put(0, 1). // uniform, cols log2 = 2
		put(1, 1).put(0, 1).                     // rows log2 = 1
		put(5, 3).put(3, 2).                     // context_update_tile_id, tile_size_bytes_minus_1
		bytes()
}

func interFrameBits() []byte {
	b := newBitBuf().
		put(0, 1).put(1, 2).put(1, 1). // show_existing, INTER_FRAME, show_frame
		put(0, 1).                     // error_resilient_mode
		put(0, 1).put(0, 1).           // disable_cdf_update, allow_screen_content_tools
		put(0, 1).put(1, 7).           // frame_size_override, order_hint
		put(0, 3).put(0x01, 8).        // primary_ref_frame, refresh_frame_flags
		put(0, 1)                      // frame_refs_short_signaling
	for i := 0; i < refsPerFrame; i++ {
		b.put(0, 3)
	}
	return b.
		put(0, 1).                     // render_and_frame_size_different
		put(1, 1).put(1, 1).put(0, 1). // high precision mv, filter switchable, motion mode
		put(0, 1).                     // use_ref_frame_mvs
		put(0, 1).                     // disable_frame_end_update_cdf
		put(1, 1).put(0, 1).put(0, 1). // uniform, one tile
		bytes()
}

func TestParseFrameHeaders(t *testing.T) {
	d := NewDecoder()
	d.SetSequenceHeader(hdSequence(8, 0))

	fh, err := d.ParseFrameHeader(keyFrameBits(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, KeyFrame, fh.FrameType)
	assert.True(t, fh.ShowFrame)
	assert.False(t, fh.ShowableFrame)
	assert.True(t, fh.ErrorResilientMode)
	assert.Equal(t, uint8(allFrames), fh.RefreshFrameFlags)
	assert.Equal(t, uint32(1920), fh.FrameWidth)
	assert.Equal(t, uint32(1080), fh.FrameHeight)
	assert.Equal(t, uint32(1920), fh.RenderWidth)
	assert.Equal(t, uint32(4), fh.TileInfo.TileCols)
	assert.Equal(t, uint32(2), fh.TileInfo.TileRows)
	assert.Equal(t, uint32(8), fh.TileInfo.Tiles())
	assert.Equal(t, uint32(5), fh.TileInfo.ContextUpdateTileID)
	assert.Equal(t, uint32(4), fh.TileInfo.TileSizeBytes)

	fh, err = d.ParseFrameHeader(interFrameBits(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, InterFrame, fh.FrameType)
	assert.Equal(t, uint32(1), fh.OrderHint)
	assert.True(t, fh.AllowHighPrecisionMV)
	assert.True(t, fh.IsFilterSwitchable)
	assert.Equal(t, uint32(1), fh.TileInfo.Tiles())

	// Slot 0 now holds the inter frame.
	show := newBitBuf().put(1, 1).put(0, 3).bytes()
	fh, err = d.ParseFrameHeader(show, 0, 0)
	require.NoError(t, err)
	assert.True(t, fh.ShowExistingFrame)
	assert.Equal(t, InterFrame, fh.FrameType)
	assert.Equal(t, uint32(1), fh.OrderHint)
	assert.Equal(t, uint32(1), fh.TileInfo.TileCols)

	// Slot 1 still holds the key frame.
	show = newBitBuf().put(1, 1).put(1, 3).bytes()
	fh, err = d.ParseFrameHeader(show, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, KeyFrame, fh.FrameType)
	assert.Equal(t, uint32(8), fh.TileInfo.Tiles())
	assert.Equal(t, uint8(allFrames), fh.RefreshFrameFlags)
}

func TestParseFrameHeaderBeforeSequence(t *testing.T) {
	_, err := NewDecoder().ParseFrameHeader(keyFrameBits(), 0, 0)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.HeaderOrderViolation))
}

func TestParseFrameHeaderTruncated(t *testing.T) {
	d := NewDecoder()
	d.SetSequenceHeader(hdSequence(8, 0))
	_, err := d.ParseFrameHeader([]byte{0x10}, 0, 0)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.MalformedStream))
}

func TestSetFrameRefs(t *testing.T) {
	d := NewDecoder()
	d.SetSequenceHeader(hdSequence(8, 0))
	for i, hint := range []uint32{10, 9, 8, 12, 14, 5, 7, 13} {
		d.refs[i] = refFrame{valid: true, orderHint: hint}
	}
	got := d.setFrameRefs(11, 0, 5)
	assert.Equal(t, [refsPerFrame]uint8{0, 1, 2, 5, 3, 7, 4}, got)
}

func TestRelativeDistWraps(t *testing.T) {
	d := NewDecoder()
	d.SetSequenceHeader(hdSequence(8, 0))
	assert.Equal(t, int32(1), d.relativeDist(0, 127))
	assert.Equal(t, int32(-1), d.relativeDist(127, 0))
	assert.Equal(t, int32(3), d.relativeDist(13, 10))
}

func TestParseTileInfoExplicit(t *testing.T) {
	b := newBitBuf().
		put(0, 1).             // uniform_tile_spacing_flag
		ns(30, 14).ns(15, 14). // two columns of 15 superblocks
		ns(17, 16).            // one row
		put(1, 1).put(2, 2)
	r := newSyntaxReader(b.bytes())
	ti := parseTileInfo(r, false, 1920, 1080)
	require.NoError(t, r.AccError())
	assert.False(t, ti.Uniform)
	assert.Equal(t, uint32(2), ti.TileCols)
	assert.Equal(t, uint32(1), ti.TileRows)
	assert.Equal(t, uint32(1), ti.TileColsLog2)
	assert.Equal(t, uint32(0), ti.TileRowsLog2)
	assert.Equal(t, uint32(1), ti.ContextUpdateTileID)
	assert.Equal(t, uint32(3), ti.TileSizeBytes)
}

func TestParseTileList(t *testing.T) {
	payload := []byte{
		3, 1, // output frame 4x2 tiles
		0, 1, // two entries
		0, 0, 1, 0, 2, 0xA, 0xB, 0xC,
		1, 2, 3, 0, 0, 0xD,
	}
	tl, err := ParseTileList(payload)
	require.NoError(t, err)
	assert.Equal(t, 4, tl.OutputFrameWidthInTiles)
	assert.Equal(t, 2, tl.OutputFrameHeightInTiles)
	require.Equal(t, 2, tl.TileCount())
	assert.Equal(t, 3, tl.Entries[0].DataSize)
	assert.Equal(t, TileListEntry{AnchorFrameIdx: 1, AnchorTileRow: 2, AnchorTileCol: 3, DataSize: 1}, tl.Entries[1])

	_, err = ParseTileList(payload[:len(payload)-1])
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.MalformedStream))
}
