package level

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/autobrr/go-av1level/internal/errs"
)

// Count is the number of seq_level_idx values.
const Count = 32

// MaxParameters is the sentinel index whose limits accept any stream.
const MaxParameters = 31

// Limits are the Annex A constraints of one level.
type Limits struct {
	MaxPicSize     uint32
	MaxHSize       uint16
	MaxVSize       uint16
	MaxDisplayRate uint64
	MaxDecodeRate  uint64
	MaxHeaderRate  uint16
	MainMbps       float64
	HighMbps       float64
	MainCR         uint8
	HighCR         uint8
	MaxTiles       uint8
	MaxTileCols    uint8
}

// Level is a seq_level_idx value, either defined (with limits) or reserved.
type Level struct {
	index  uint8
	limits *Limits
}

func (l Level) Index() uint8 {
	return l.index
}

func (l Level) IsValid() bool {
	return l.limits != nil
}

// Limits returns the level constraints; ok is false for reserved levels.
func (l Level) Limits() (Limits, bool) {
	if l.limits == nil {
		return Limits{}, false
	}
	return *l.limits, true
}

// HasTier reports whether seq_tier is coded for this level.
func (l Level) HasTier() bool {
	return l.index > 7
}

func (l Level) String() string {
	switch {
	case l.index == MaxParameters:
		return "Maximum parameters"
	case l.limits == nil:
		return "Reserved"
	default:
		return fmt.Sprintf("%d.%d (%d)", 2+(l.index>>2), l.index&3, l.index)
	}
}

func valid(index uint8, limits Limits) Level {
	return Level{index: index, limits: &limits}
}

func reserved(index uint8) Level {
	return Level{index: index}
}

var table = [Count]Level{
	valid(0, Limits{
		MaxPicSize:     147_456, MaxHSize: 2048, MaxVSize: 1152,
		MaxDisplayRate: 4_423_680, MaxDecodeRate: 5_529_600, MaxHeaderRate: 150,
		MainMbps:       1.5, MainCR: 2, MaxTiles: 8, MaxTileCols: 4,
	}),
	valid(1, Limits{
		MaxPicSize:     278_784, MaxHSize: 2816, MaxVSize: 1584,
		MaxDisplayRate: 8_363_520, MaxDecodeRate: 10_454_400, MaxHeaderRate: 150,
		MainMbps:       3.0, MainCR: 2, MaxTiles: 8, MaxTileCols: 4,
	}),
	reserved(2),
	reserved(3),
	valid(4, Limits{
		MaxPicSize:     665_856, MaxHSize: 4352, MaxVSize: 2448,
		MaxDisplayRate: 19_975_680, MaxDecodeRate: 24_969_600, MaxHeaderRate: 150,
		MainMbps:       6.0, MainCR: 2, MaxTiles: 16, MaxTileCols: 6,
	}),
	valid(5, Limits{
		MaxPicSize:     1_065_024, MaxHSize: 5504, MaxVSize: 3096,
		MaxDisplayRate: 31_950_720, MaxDecodeRate: 39_938_400, MaxHeaderRate: 150,
		MainMbps:       10.0, MainCR: 2, MaxTiles: 16, MaxTileCols: 6,
	}),
	reserved(6),
	reserved(7),
	valid(8, Limits{
		MaxPicSize:     2_359_296, MaxHSize: 6144, MaxVSize: 3456,
		MaxDisplayRate: 70_778_880, MaxDecodeRate: 77_856_768, MaxHeaderRate: 300,
		MainMbps:       12.0, HighMbps: 30.0, MainCR: 4, HighCR: 4, MaxTiles: 32, MaxTileCols: 8,
	}),
	valid(9, Limits{
		MaxPicSize:     2_359_296, MaxHSize: 6144, MaxVSize: 3456,
		MaxDisplayRate: 141_557_760, MaxDecodeRate: 155_713_536, MaxHeaderRate: 300,
		MainMbps:       20.0, HighMbps: 50.0, MainCR: 4, HighCR: 4, MaxTiles: 32, MaxTileCols: 8,
	}),
	reserved(10),
	reserved(11),
	valid(12, Limits{
		MaxPicSize:     8_912_896, MaxHSize: 8192, MaxVSize: 4352,
		MaxDisplayRate: 267_386_880, MaxDecodeRate: 273_715_200, MaxHeaderRate: 300,
		MainMbps:       30.0, HighMbps: 100.0, MainCR: 6, HighCR: 4, MaxTiles: 64, MaxTileCols: 8,
	}),
	valid(13, Limits{
		MaxPicSize:     8_912_896, MaxHSize: 8192, MaxVSize: 4352,
		MaxDisplayRate: 534_773_760, MaxDecodeRate: 547_430_400, MaxHeaderRate: 300,
		MainMbps:       40.0, HighMbps: 160.0, MainCR: 8, HighCR: 4, MaxTiles: 64, MaxTileCols: 8,
	}),
	valid(14, Limits{
		MaxPicSize:     8_912_896, MaxHSize: 8192, MaxVSize: 4352,
		MaxDisplayRate: 1_069_547_520, MaxDecodeRate: 1_094_860_800, MaxHeaderRate: 300,
		MainMbps:       60.0, HighMbps: 240.0, MainCR: 8, HighCR: 4, MaxTiles: 64, MaxTileCols: 8,
	}),
	valid(15, Limits{
		MaxPicSize:     8_912_896, MaxHSize: 8192, MaxVSize: 4352,
		MaxDisplayRate: 1_069_547_520, MaxDecodeRate: 1_176_502_272, MaxHeaderRate: 300,
		MainMbps:       60.0, HighMbps: 240.0, MainCR: 8, HighCR: 4, MaxTiles: 64, MaxTileCols: 8,
	}),
	valid(16, Limits{
		MaxPicSize:     35_651_584, MaxHSize: 16384, MaxVSize: 8704,
		MaxDisplayRate: 1_069_547_520, MaxDecodeRate: 1_176_502_272, MaxHeaderRate: 300,
		MainMbps:       60.0, HighMbps: 240.0, MainCR: 8, HighCR: 4, MaxTiles: 128, MaxTileCols: 16,
	}),
	valid(17, Limits{
		MaxPicSize:     35_651_584, MaxHSize: 16384, MaxVSize: 8704,
		MaxDisplayRate: 2_139_095_040, MaxDecodeRate: 2_189_721_600, MaxHeaderRate: 300,
		MainMbps:       100.0, HighMbps: 480.0, MainCR: 8, HighCR: 4, MaxTiles: 128, MaxTileCols: 16,
	}),
	valid(18, Limits{
		MaxPicSize:     35_651_584, MaxHSize: 16384, MaxVSize: 8704,
		MaxDisplayRate: 4_278_190_080, MaxDecodeRate: 4_379_443_200, MaxHeaderRate: 300,
		MainMbps:       160.0, HighMbps: 800.0, MainCR: 8, HighCR: 4, MaxTiles: 128, MaxTileCols: 16,
	}),
	valid(19, Limits{
		MaxPicSize:     35_651_584, MaxHSize: 16384, MaxVSize: 8704,
		MaxDisplayRate: 4_278_190_080, MaxDecodeRate: 4_706_009_088, MaxHeaderRate: 300,
		MainMbps:       160.0, HighMbps: 800.0, MainCR: 8, HighCR: 4, MaxTiles: 128, MaxTileCols: 16,
	}),
	reserved(20),
	reserved(21),
	reserved(22),
	reserved(23),
	reserved(24),
	reserved(25),
	reserved(26),
	reserved(27),
	reserved(28),
	reserved(29),
	reserved(30),
	valid(MaxParameters, Limits{
		MaxPicSize:     math.MaxUint32,
		MaxHSize:       math.MaxUint16,
		MaxVSize:       math.MaxUint16,
		MaxDisplayRate: math.MaxUint64,
		MaxDecodeRate:  math.MaxUint64,
		MaxHeaderRate:  math.MaxUint16,
		MainMbps:       math.MaxFloat64,
		HighMbps:       math.MaxFloat64,
		MainCR:         math.MaxUint8,
		HighCR:         math.MaxUint8,
		MaxTiles:       math.MaxUint8,
		MaxTileCols:    math.MaxUint8,
	}),
}

// Lookup returns the level at index; ok is false when index is out of range.
func Lookup(index uint8) (Level, bool) {
	if int(index) >= Count {
		return Level{}, false
	}
	return table[index], true
}

// MustLookup is Lookup for indices already known to be in range.
func MustLookup(index uint8) Level {
	l, ok := Lookup(index)
	if !ok {
		panic(fmt.Sprintf("level index %d out of range", index))
	}
	return l
}

func IsValid(index uint8) bool {
	l, ok := Lookup(index)
	return ok && l.IsValid()
}

// ValidIndices lists every defined level index in ascending order.
func ValidIndices() []uint8 {
	out := make([]uint8, 0, Count)
	for _, l := range table {
		if l.IsValid() {
			out = append(out, l.index)
		}
	}
	return out
}

// ParseIndex parses a decimal level index and rejects reserved or
// out-of-range values.
func ParseIndex(value string) (Level, error) {
	const op = "parse level"
	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 8)
	if err != nil {
		return Level{}, errs.Newf(errs.InvalidArguments, op, "%q is not a level index", value)
	}
	l, ok := Lookup(uint8(n))
	if !ok || !l.IsValid() {
		return Level{}, errs.Newf(errs.InvalidArguments, op, "%q is not a defined level (valid: %s)", value, joinIndices(ValidIndices()))
	}
	return l, nil
}

func joinIndices(indices []uint8) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(int(idx))
	}
	return strings.Join(parts, ", ")
}
