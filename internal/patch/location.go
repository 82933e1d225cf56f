package patch

import (
	"github.com/autobrr/go-av1level/internal/errs"
)

const (
	levelBits = 5
	// level offsets inside the sequence header payload
	reducedLevelBitOffset = 5
	fullLevelBitOffset    = 24
)

// Location pins the seq_level_idx field of operating point 0 inside a
// sequence header OBU payload.
type Location struct {
	RecordOffset   int64
	LevelBitOffset uint
	RecordLen      int64
}

// ByteOffset is the file offset of the byte holding the first level bit.
func (l Location) ByteOffset() int64 {
	return l.RecordOffset + int64(l.LevelBitOffset/8)
}

// Shift is the number of bits preceding the level in that byte.
func (l Location) Shift() uint {
	return l.LevelBitOffset % 8
}

// TierCoded reports whether seq_tier can follow the level. Reduced still
// picture headers never carry it.
func (l Location) TierCoded() bool {
	return l.LevelBitOffset != reducedLevelBitOffset
}

// Nominal places the level at its fixed offset without looking at the
// header flags. It is good for planning a transition, not for writing one.
func Nominal(recordOffset, recordLen int64, reduced bool) Location {
	loc := Location{RecordOffset: recordOffset, RecordLen: recordLen, LevelBitOffset: fullLevelBitOffset}
	if reduced {
		loc.LevelBitOffset = reducedLevelBitOffset
	}
	return loc
}

// Locate computes where the level bits of a sequence header sit. The fixed
// offsets only hold for single operating point headers without timing
// info.
func Locate(recordOffset, recordLen int64, reduced, timingInfo bool, operatingPoints int) (Location, error) {
	const op = "locate level"
	if operatingPoints > 1 {
		return Location{}, errs.Newf(errs.UnsupportedFeature, op, "%d operating points, only single operating point streams are supported", operatingPoints)
	}
	loc := Nominal(recordOffset, recordLen, reduced)
	if !reduced && timingInfo {
		return Location{}, errs.New(errs.UnsupportedFeature, op, "sequence headers with timing info are not supported")
	}
	if int64(loc.LevelBitOffset/8)+2 > recordLen {
		return Location{}, errs.Newf(errs.MalformedStream, op, "sequence header of %d bytes is too short", recordLen)
	}
	return loc, nil
}
