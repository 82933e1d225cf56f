// Package stats derives the rates and ratios that decide an AV1 level from
// a stream of parsed OBU events.
package stats

import (
	"math"

	"github.com/autobrr/go-av1level/internal/errs"
	"github.com/autobrr/go-av1level/internal/level"
)

const (
	// frameHeaderOverhead is subtracted from the size of the header that
	// opens a frame's compressed size tally.
	frameHeaderOverhead = 128
	// tileListRate is the tile list output rate per second used for the
	// large scale tile bounds.
	tileListRate = 180
)

// Config describes the container the events come from.
type Config struct {
	// TimeScale is the number of PTS ticks per second.
	TimeScale float64
	// Width and Height are the container picture size. When zero, the
	// sequence maximum frame size is used.
	Width  uint32
	Height uint32
}

// Result is the outcome of one pass over a stream.
type Result struct {
	Sequence   SequenceHeader
	Context    level.SequenceContext
	MinCRLevel uint8

	TemporalUnits int
	ShownFrames   uint64
	DecodedFrames uint64

	// Per picture maxima, before scaling by PictureArea.
	MaxDisplayRate float64
	MaxDecodeRate  float64
	MaxHeaderRate  float64
	MaxMbps        float64
	MaxTiles       uint32
	MaxTileCols    uint32

	MinCompressRatio float64
	TileListBitrate  uint64
	TileDecodeRate   float64
	PictureArea      uint64
}

// Accumulator is the per-stream state machine. It is not safe for
// concurrent use.
type Accumulator struct {
	cfg Config
	seq *SequenceHeader

	started       bool
	finished      bool
	unitStart     uint64
	prevUnitStart uint64

	// current temporal unit
	shown     int
	decoded   int
	headers   int
	unitBytes int
	unitRatio float64

	frameBytes int64
	tileCols   uint32
	tileRows   uint32

	win window

	units          int
	totalShown     uint64
	totalDecoded   uint64
	maxDisplayRate float64
	maxDecodeRate  float64
	maxHeaderRate  float64
	maxMbps        float64
	maxTiles       uint32
	maxTileCols    uint32
	minRatio       float64
	minCRLevel     uint8
	tileListRate   uint64
	tileDecodeRate float64
}

func New(cfg Config) *Accumulator {
	return &Accumulator{
		cfg:       cfg,
		unitRatio: math.MaxFloat64,
		minRatio:  math.MaxFloat64,
	}
}

// Ingest applies one event.
func (a *Accumulator) Ingest(ev Event) error {
	if a.finished {
		return errs.New(errs.MalformedStream, "ingest", "event after end of stream")
	}
	switch ev := ev.(type) {
	case TemporalDelimiter:
		return a.temporalDelimiter(ev)
	case SequenceHeader:
		return a.sequenceHeader(ev)
	case FrameHeader:
		return a.frameHeader(ev)
	case Payload:
		a.frameBytes += int64(ev.Size)
		a.unitBytes += ev.Size
	case TileList:
		a.tileList(ev)
	case EndOfStream:
		a.endOfStream()
	}
	return nil
}

func (a *Accumulator) sequenceHeader(ev SequenceHeader) error {
	if ev.OperatingPoints > 1 {
		return errs.Newf(errs.UnsupportedFeature, "sequence header", "%d operating points, only single operating point streams are supported", ev.OperatingPoints)
	}
	a.seq = &ev
	return nil
}

func (a *Accumulator) temporalDelimiter(ev TemporalDelimiter) error {
	const op = "temporal delimiter"
	if !a.started {
		a.started = true
		a.unitStart = ev.PTS
		return nil
	}
	if ev.PTS == a.unitStart {
		// duplicate
		return nil
	}
	if ev.PTS < a.unitStart {
		return errs.Newf(errs.MalformedStream, op, "pts %d precedes temporal unit start %d", ev.PTS, a.unitStart)
	}

	duration := ev.PTS - a.unitStart
	a.closeUnit(float64(duration)/a.cfg.TimeScale, duration, false)
	a.prevUnitStart = a.unitStart
	a.unitStart = ev.PTS
	return nil
}

func (a *Accumulator) frameHeader(ev FrameHeader) error {
	if a.seq == nil {
		return errs.New(errs.HeaderOrderViolation, "frame header", "frame header found before sequence header")
	}
	if !a.started {
		a.started = true
		a.unitStart = ev.PTS
	}

	if ev.ShowExisting {
		a.frameBytes += int64(ev.Size)
	} else {
		a.closeFrame()
		a.frameBytes = int64(ev.Size) - frameHeaderOverhead
		a.headers++
		a.decoded++
	}
	a.unitBytes += ev.Size
	if ev.ShowFrame || ev.ShowExisting {
		a.shown++
	}

	a.tileCols, a.tileRows = ev.TileCols, ev.TileRows
	a.maxTileCols = max(a.maxTileCols, ev.TileCols)
	a.maxTiles = max(a.maxTiles, ev.TileCols*ev.TileRows)
	return nil
}

func (a *Accumulator) tileList(ev TileList) {
	a.tileListRate = max(a.tileListRate, uint64(ev.Bytes)*8*tileListRate)
	cols, rows := max(a.tileCols, 1), max(a.tileRows, 1)
	w, h := a.frameSize()
	rate := float64(w) / float64(cols) * float64(h) / float64(rows) * float64(ev.TileCount) * tileListRate
	a.tileDecodeRate = math.Max(a.tileDecodeRate, rate)
}

// closeFrame ends the compressed size tally of the current frame and folds
// its compression ratio into the unit minimum.
func (a *Accumulator) closeFrame() {
	if a.frameBytes > 0 && a.seq != nil {
		ratio := float64(a.uncompressedSize()) / float64(a.frameBytes)
		a.unitRatio = math.Min(a.unitRatio, ratio)
		a.minRatio = math.Min(a.minRatio, ratio)
	}
	a.frameBytes = 0
}

func (a *Accumulator) uncompressedSize() uint64 {
	factor := uint64(36)
	switch a.seq.Profile {
	case 0:
		factor = 15
	case 1:
		factor = 30
	}
	return (a.pictureArea() * factor) >> 3
}

func (a *Accumulator) frameSize() (uint32, uint32) {
	if a.cfg.Width > 0 && a.cfg.Height > 0 {
		return a.cfg.Width, a.cfg.Height
	}
	if a.seq != nil {
		return a.seq.MaxWidth, a.seq.MaxHeight
	}
	return 0, 0
}

func (a *Accumulator) pictureArea() uint64 {
	w, h := a.frameSize()
	return uint64(w) * uint64(h)
}

// closeUnit finishes the current temporal unit. At the end of the stream
// the window factor is taken before trimming and short streams are not
// extrapolated to a full second.
func (a *Accumulator) closeUnit(delta float64, duration uint64, final bool) {
	a.closeFrame()

	displayRate := float64(a.shown) / delta
	a.maxDisplayRate = math.Max(a.maxDisplayRate, displayRate)
	a.maxDecodeRate = math.Max(a.maxDecodeRate, float64(a.decoded)/delta)

	a.win.push(Sample{Headers: a.headers, Bytes: a.unitBytes, Duration: duration})
	second := math.Round(a.cfg.TimeScale)
	if final {
		factor := 1.0
		if float64(a.win.duration) >= second {
			factor = a.cfg.TimeScale / float64(a.win.duration)
		}
		a.win.trim(second)
		a.updateWindowRates(factor)
	} else if float64(a.win.duration) >= second {
		a.win.trim(second)
		a.updateWindowRates(a.cfg.TimeScale / float64(a.win.duration))
	}

	if a.seq != nil {
		if idx, ok := level.MinCRLevel(a.seq.Tier, displayRate, a.unitRatio); ok && idx > a.minCRLevel {
			a.minCRLevel = idx
		}
	}

	a.units++
	a.totalShown += uint64(a.shown)
	a.totalDecoded += uint64(a.decoded)
	a.shown, a.decoded, a.headers, a.unitBytes = 0, 0, 0, 0
	a.unitRatio = math.MaxFloat64
}

func (a *Accumulator) updateWindowRates(factor float64) {
	if math.IsInf(factor, 0) || math.IsNaN(factor) {
		return
	}
	a.maxHeaderRate = math.Max(a.maxHeaderRate, float64(a.win.headers)*factor)
	a.maxMbps = math.Max(a.maxMbps, float64(a.win.bytes)*factor*8/1e6)
}

func (a *Accumulator) endOfStream() {
	if a.finished {
		return
	}
	a.finished = true
	ts := a.cfg.TimeScale
	var duration uint64
	if a.unitStart > a.prevUnitStart {
		duration = a.unitStart - a.prevUnitStart
	}
	delta := math.Max(float64(duration)/ts, float64(a.unitStart)/ts)
	if delta <= 0 {
		delta = 1 / ts
	}
	a.closeUnit(delta, duration, true)
	if area := a.pictureArea(); area > 0 {
		// Tile decoding is bounded by half the level's decode rate.
		a.maxDecodeRate = math.Max(a.maxDecodeRate, 2*a.tileDecodeRate/float64(area))
	}
}

// Finalize ends the stream if needed and builds the level context.
func (a *Accumulator) Finalize() (Result, error) {
	if a.seq == nil {
		return Result{}, errs.New(errs.MalformedStream, "finalize", "stream has no sequence header")
	}
	a.endOfStream()

	area := a.pictureArea()
	res := Result{
		Sequence:   *a.seq,
		MinCRLevel: a.minCRLevel,
		Context: level.SequenceContext{
			Tier:        a.seq.Tier,
			Width:       clampU16(uint64(a.seq.MaxWidth)),
			Height:      clampU16(uint64(a.seq.MaxHeight)),
			DisplayRate: ceilU64(a.maxDisplayRate * float64(area)),
			DecodeRate:  ceilU64(a.maxDecodeRate * float64(area)),
			HeaderRate:  clampU16(ceilU64(a.maxHeaderRate)),
			Mbps:        a.maxMbps,
			Tiles:       clampU8(a.maxTiles),
			TileCols:    clampU8(a.maxTileCols),
		},
		TemporalUnits:    a.units,
		ShownFrames:      a.totalShown,
		DecodedFrames:    a.totalDecoded,
		MaxDisplayRate:   a.maxDisplayRate,
		MaxDecodeRate:    a.maxDecodeRate,
		MaxHeaderRate:    a.maxHeaderRate,
		MaxMbps:          a.maxMbps,
		MaxTiles:         a.maxTiles,
		MaxTileCols:      a.maxTileCols,
		MinCompressRatio: a.minRatio,
		TileListBitrate:  a.tileListRate,
		TileDecodeRate:   a.tileDecodeRate,
		PictureArea:      area,
	}
	return res, nil
}

func ceilU64(v float64) uint64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint64:
		return math.MaxUint64
	}
	return uint64(math.Ceil(v))
}

func clampU16(v uint64) uint16 {
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

func clampU8(v uint32) uint8 {
	if v > math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(v)
}
