// Package patch rewrites the seq_level_idx and seq_tier bits of an AV1
// sequence header without changing the size of the file.
package patch

import (
	"io"

	"github.com/pkg/errors"

	"github.com/autobrr/go-av1level/internal/errs"
	"github.com/autobrr/go-av1level/internal/level"
)

type Kind uint8

const (
	// None keeps the tier bit as is.
	None Kind = iota
	// TierRemoved drops the tier bit when moving to a level below 4.0.
	TierRemoved
	// TierInserted adds a Main tier bit when moving to level 4.0 or above.
	TierInserted
)

func (k Kind) String() string {
	switch k {
	case TierRemoved:
		return "tier bit removed"
	case TierInserted:
		return "tier bit inserted"
	default:
		return "none"
	}
}

// Transition describes a level rewrite. DroppedBit is set when inserting the
// tier bit pushed a 1 bit off the end of the sequence header.
type Transition struct {
	Old        level.Level
	New        level.Level
	Kind       Kind
	DroppedBit bool
}

// ReadWriterAt is the byte store a patch operates on, usually an *os.File.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

func kindOf(loc Location, old, new level.Level) Kind {
	switch {
	case !loc.TierCoded():
		return None
	case old.HasTier() && !new.HasTier():
		return TierRemoved
	case !old.HasTier() && new.HasTier():
		return TierInserted
	default:
		return None
	}
}

// Plan validates a transition without touching any data.
func Plan(loc Location, old, new level.Level, tier level.Tier) (Transition, error) {
	t := Transition{Old: old, New: new, Kind: kindOf(loc, old, new)}
	if t.Kind == TierRemoved && tier == level.High {
		return t, errs.Newf(errs.InvalidTierTransition, "plan patch", "cannot lower %s to %s, the stream declares High tier", old, new)
	}
	return t, nil
}

// Patch rewrites the level at loc from old to new. The level currently
// stored must equal old. When the tier bit appears or disappears the rest of
// the sequence header is shifted by one bit within its original length.
func Patch(rw ReadWriterAt, loc Location, old, new level.Level) (Transition, error) {
	const op = "patch level"
	t := Transition{Old: old, New: new, Kind: kindOf(loc, old, new)}

	start := loc.ByteOffset()
	n := loc.RecordOffset + loc.RecordLen - start
	if n < 2 {
		return t, errs.Newf(errs.MalformedStream, op, "level field at offset %d runs past the sequence header", start)
	}
	buf := make([]byte, n)
	if _, err := rw.ReadAt(buf, start); err != nil {
		return t, errs.Wrap(errs.MalformedStream, op, errors.Wrapf(err, "read sequence header at %d", start))
	}

	shift := loc.Shift()
	window := uint16(buf[0])<<8 | uint16(buf[1])
	if got := uint8((window<<shift)>>11) & 0x1f; got != old.Index() {
		return t, errs.Newf(errs.ConsistencyCheckFailure, op, "level bits at offset %d hold %d, expected %d", start, got, old.Index())
	}

	c := NewBitCursor(buf)
	c.Copy(int(shift))
	c.ReadBits(levelBits)
	c.WriteBits(levelBits, uint(new.Index()))
	rest := int(n*8) - int(shift) - levelBits

	out := 2
	switch t.Kind {
	case None:
		c.Copy(16 - int(shift) - levelBits)
	case TierRemoved:
		if c.ReadBits(1) != 0 {
			return t, errs.Newf(errs.InvalidTierTransition, op, "cannot lower %s to %s, the stream declares High tier", old, new)
		}
		c.Copy(rest - 1)
		c.WriteBits(1, 0)
		out = int(n)
	case TierInserted:
		c.WriteBits(1, 0)
		c.Copy(rest - 1)
		t.DroppedBit = c.ReadBits(1) != 0
		out = int(n)
	}

	patched, err := c.Bytes()
	if err != nil {
		return t, errs.Wrap(errs.MalformedStream, op, err)
	}
	if _, err := rw.WriteAt(patched[:out], start); err != nil {
		return t, errors.Wrapf(err, "write sequence header at %d", start)
	}
	return t, nil
}
