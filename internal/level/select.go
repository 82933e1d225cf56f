package level

import (
	"fmt"
	"strings"
)

type Tier uint8

const (
	Main Tier = iota
	High
)

// TierFromBit maps a coded seq_tier value.
func TierFromBit(bit uint8) Tier {
	if bit == 0 {
		return Main
	}
	return High
}

func (t Tier) String() string {
	if t == High {
		return "High"
	}
	return "Main"
}

// SequenceContext holds the maximum parameters a stream was observed to use.
type SequenceContext struct {
	Tier        Tier
	Width       uint16
	Height      uint16
	DisplayRate uint64
	DecodeRate  uint64
	HeaderRate  uint16
	Mbps        float64
	Tiles       uint8
	TileCols    uint8
}

func (c SequenceContext) PicArea() uint32 {
	return uint32(c.Width) * uint32(c.Height)
}

func (c SequenceContext) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tier: %s\n", c.Tier)
	fmt.Fprintf(&b, "Picture Size: %dx%d\n", c.Width, c.Height)
	fmt.Fprintf(&b, "Display/Decode/Header Rates: %d/%d/%d\n", c.DisplayRate, c.DecodeRate, c.HeaderRate)
	fmt.Fprintf(&b, "Mbps: %.3f\n", c.Mbps)
	fmt.Fprintf(&b, "Tiles/Tile Columns: %d/%d\n", c.Tiles, c.TileCols)
	return b.String()
}

// usesMainLimits is true where only the Main tier is defined or requested.
func usesMainLimits(tier Tier, index uint8) bool {
	return tier == Main || index <= 7
}

// Satisfies reports whether every limit of l dominates ctx. Reserved
// levels satisfy nothing.
func (l Level) Satisfies(ctx SequenceContext) bool {
	lim, ok := l.Limits()
	if !ok {
		return false
	}
	mbps := lim.HighMbps
	if usesMainLimits(ctx.Tier, l.index) {
		mbps = lim.MainMbps
	}
	return lim.MaxPicSize >= ctx.PicArea() &&
		lim.MaxHSize >= ctx.Width &&
		lim.MaxVSize >= ctx.Height &&
		lim.MaxDisplayRate >= ctx.DisplayRate &&
		lim.MaxDecodeRate >= ctx.DecodeRate &&
		lim.MaxHeaderRate >= ctx.HeaderRate &&
		mbps >= ctx.Mbps &&
		lim.MaxTiles >= ctx.Tiles &&
		lim.MaxTileCols >= ctx.TileCols
}

// Select returns the lowest defined level that accommodates ctx. The
// Maximum parameters level accepts everything, so a miss is a bug.
func Select(ctx SequenceContext) Level {
	for _, l := range table {
		if l.Satisfies(ctx) {
			return l
		}
	}
	panic("level: no level satisfies the sequence context")
}

// Resolve picks the output level. A forced level is returned as is;
// otherwise the selected level is raised to minCR when that is higher.
func Resolve(ctx SequenceContext, minCR uint8, forced *Level) Level {
	if forced != nil {
		return *forced
	}
	l := Select(ctx)
	if minCR > l.index {
		if floor, ok := Lookup(minCR); ok && floor.IsValid() {
			return floor
		}
	}
	return l
}
