package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/go-av1level/internal/errs"
	"github.com/autobrr/go-av1level/internal/level"
)

var hd = SequenceHeader{MaxWidth: 1280, MaxHeight: 720, OperatingPoints: 1}

func feed(t *testing.T, a *Accumulator, events ...Event) {
	t.Helper()
	for i, ev := range events {
		require.NoError(t, a.Ingest(ev), "event %d (%T)", i, ev)
	}
}

// unit is one temporal unit holding a single shown frame.
func unit(pts uint64, headerSize, payload int) []Event {
	return []Event{
		TemporalDelimiter{PTS: pts},
		FrameHeader{PTS: pts, Size: headerSize, ShowFrame: true, TileCols: 1, TileRows: 1},
		Payload{Size: payload},
	}
}

func TestSingleTemporalUnit(t *testing.T) {
	a := New(Config{TimeScale: 30, Width: 1280, Height: 720})
	feed(t, a, hd)
	feed(t, a, unit(0, 1000, 5000)...)
	feed(t, a, EndOfStream{})

	res, err := a.Finalize()
	require.NoError(t, err)
	assert.False(t, math.IsInf(res.MaxDisplayRate, 0))
	assert.False(t, math.IsNaN(res.MaxDisplayRate))
	assert.InDelta(t, 30, res.MaxDisplayRate, 1e-6)
	assert.InDelta(t, 1, res.MaxHeaderRate, 1e-9)
	assert.InDelta(t, 0.048, res.MaxMbps, 1e-9)
	assert.Equal(t, uint64(1), res.ShownFrames)
	assert.Equal(t, 1, res.TemporalUnits)
	assert.Equal(t, uint64(1280*720), res.PictureArea)
}

func TestConstantFrameRate(t *testing.T) {
	a := New(Config{TimeScale: 30, Width: 1280, Height: 720})
	feed(t, a, hd)
	for pts := uint64(0); pts < 60; pts++ {
		feed(t, a, unit(pts, 2000, 3000)...)
	}
	res, err := a.Finalize()
	require.NoError(t, err)

	assert.InDelta(t, 30, res.MaxDisplayRate, 1e-6)
	assert.InDelta(t, 30, res.MaxDecodeRate, 1e-6)
	assert.InDelta(t, 30, res.MaxHeaderRate, 1e-6)
	assert.InDelta(t, 1.2, res.MaxMbps, 1e-6)
	assert.Equal(t, uint64(60), res.ShownFrames)
	assert.Equal(t, uint64(60), res.DecodedFrames)
	assert.Equal(t, 60, res.TemporalUnits)
	assert.Equal(t, uint8(0), res.MinCRLevel)
	assert.InDelta(t, 1728000.0/4872.0, res.MinCompressRatio, 1e-6)

	ctx := res.Context
	assert.Equal(t, uint16(1280), ctx.Width)
	assert.Equal(t, uint16(720), ctx.Height)
	assert.Equal(t, uint16(30), ctx.HeaderRate)
	assert.InDelta(t, 30*1280*720, float64(ctx.DisplayRate), 1)
	assert.Equal(t, uint8(1), ctx.Tiles)
	assert.Equal(t, uint8(5), level.Resolve(ctx, res.MinCRLevel, nil).Index())
}

func TestCompressionRatioFloorUsesFrameRate(t *testing.T) {
	a := New(Config{TimeScale: 60, Width: 640, Height: 360})
	feed(t, a, SequenceHeader{MaxWidth: 640, MaxHeight: 360, OperatingPoints: 1})
	// 432,000 uncompressed bytes against a 360,000 byte key frame is a
	// ratio of 1.2. At 60 shown frames per second every level accepts it.
	feed(t, a, unit(0, frameHeaderOverhead, 360_000)...)
	for pts := uint64(1); pts < 60; pts++ {
		feed(t, a, unit(pts, frameHeaderOverhead, 1000)...)
	}
	res, err := a.Finalize()
	require.NoError(t, err)
	assert.InDelta(t, 1.2, res.MinCompressRatio, 1e-9)
	assert.InDelta(t, 60, res.MaxDisplayRate, 1e-6)
	assert.Equal(t, uint8(0), res.MinCRLevel)

	idx, ok := level.MinCRLevel(level.Main, res.MaxDisplayRate, res.MinCompressRatio)
	require.True(t, ok)
	assert.Equal(t, res.MinCRLevel, idx)

	selected := level.Select(res.Context)
	assert.Equal(t, uint8(4), selected.Index())
	assert.Equal(t, selected, level.Resolve(res.Context, res.MinCRLevel, nil))
}

func TestCompressionRatioBelowFloorKeepsLevel(t *testing.T) {
	a := New(Config{TimeScale: 30, Width: 1280, Height: 720})
	feed(t, a, hd)
	// 1,728,000 uncompressed bytes in a 2,500,000 byte frame is below the
	// 0.8 floor of every level, so no level raises the minimum.
	for pts := uint64(0); pts < 3; pts++ {
		feed(t, a, unit(pts, frameHeaderOverhead, 2_500_000)...)
	}
	res, err := a.Finalize()
	require.NoError(t, err)
	assert.InDelta(t, 0.6912, res.MinCompressRatio, 1e-9)
	assert.Equal(t, uint8(0), res.MinCRLevel)
}

func TestShowExistingFrame(t *testing.T) {
	a := New(Config{TimeScale: 30})
	feed(t, a, hd,
		TemporalDelimiter{PTS: 0},
		FrameHeader{PTS: 0, Size: 500, ShowFrame: false, TileCols: 2, TileRows: 2},
		Payload{Size: 1000},
		FrameHeader{PTS: 0, Size: 400, ShowFrame: true, TileCols: 4, TileRows: 1},
		Payload{Size: 1000},
		TemporalDelimiter{PTS: 1},
		FrameHeader{PTS: 1, Size: 3, ShowExisting: true, TileCols: 2, TileRows: 2},
	)
	res, err := a.Finalize()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.ShownFrames)
	assert.Equal(t, uint64(2), res.DecodedFrames)
	assert.Equal(t, uint32(4), res.MaxTileCols)
	assert.Equal(t, uint32(4), res.MaxTiles)
	// Picture area falls back to the sequence maximum frame size.
	assert.Equal(t, uint64(1280*720), res.PictureArea)
}

func TestDuplicateTemporalDelimiter(t *testing.T) {
	a := New(Config{TimeScale: 30})
	feed(t, a, hd)
	feed(t, a, unit(0, 200, 100)...)
	feed(t, a, TemporalDelimiter{PTS: 0})
	feed(t, a, unit(1, 200, 100)...)
	feed(t, a, TemporalDelimiter{PTS: 1})
	res, err := a.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 2, res.TemporalUnits)
	assert.InDelta(t, 30, res.MaxDisplayRate, 1e-6)
}

func TestLongTemporalUnitKeepsWindow(t *testing.T) {
	a := New(Config{TimeScale: 30})
	feed(t, a, hd)
	feed(t, a, unit(0, 200, 100)...)
	feed(t, a, TemporalDelimiter{PTS: 60})
	res, err := a.Finalize()
	require.NoError(t, err)
	// One header over two seconds.
	assert.InDelta(t, 0.5, res.MaxHeaderRate, 1e-9)
	assert.False(t, math.IsNaN(res.MaxMbps))
}

func TestTileList(t *testing.T) {
	a := New(Config{TimeScale: 30, Width: 1280, Height: 720})
	feed(t, a, hd,
		TemporalDelimiter{PTS: 0},
		FrameHeader{PTS: 0, Size: 300, ShowFrame: true, TileCols: 2, TileRows: 2},
		TileList{Bytes: 100, TileCount: 4},
	)
	res, err := a.Finalize()
	require.NoError(t, err)
	assert.Equal(t, uint64(100*8*180), res.TileListBitrate)
	assert.InDelta(t, 640*360*4*180, res.TileDecodeRate, 1e-6)
	assert.InDelta(t, 2*640*360*4*180/float64(1280*720), res.MaxDecodeRate, 1e-6)
}

func TestHeaderOrderViolation(t *testing.T) {
	a := New(Config{TimeScale: 30})
	err := a.Ingest(FrameHeader{Size: 10, ShowFrame: true})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.HeaderOrderViolation))
}

func TestMultipleOperatingPoints(t *testing.T) {
	a := New(Config{TimeScale: 30})
	seq := hd
	seq.OperatingPoints = 2
	err := a.Ingest(seq)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.UnsupportedFeature))
}

func TestBackwardsTimestamp(t *testing.T) {
	a := New(Config{TimeScale: 30})
	feed(t, a, hd)
	feed(t, a, unit(5, 200, 100)...)
	err := a.Ingest(TemporalDelimiter{PTS: 4})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.MalformedStream))
}

func TestFinalizeWithoutSequenceHeader(t *testing.T) {
	a := New(Config{TimeScale: 30})
	feed(t, a, TemporalDelimiter{PTS: 0})
	_, err := a.Finalize()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.MalformedStream))
}

func TestIngestAfterEndOfStream(t *testing.T) {
	a := New(Config{TimeScale: 30})
	feed(t, a, hd, EndOfStream{})
	assert.Error(t, a.Ingest(TemporalDelimiter{PTS: 3}))
}

func TestWindowTrim(t *testing.T) {
	var w window
	for i := 0; i < 5; i++ {
		w.push(Sample{Headers: 1, Bytes: 10, Duration: 10})
	}
	w.trim(30)
	assert.Equal(t, 3, w.len())
	assert.Equal(t, uint64(30), w.duration)
	assert.Equal(t, 3, w.headers)
	assert.Equal(t, 30, w.bytes)

	w.push(Sample{Headers: 2, Bytes: 1, Duration: 100})
	w.trim(30)
	assert.Equal(t, 1, w.len())
	assert.Equal(t, 2, w.headers)
}
