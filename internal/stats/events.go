package stats

import "github.com/autobrr/go-av1level/internal/level"

// Event is one parsed stream element fed to an Accumulator.
type Event interface {
	event()
}

// TemporalDelimiter starts a new temporal unit at PTS.
type TemporalDelimiter struct {
	PTS uint64
}

// SequenceHeader carries the sequence header fields the accumulator needs.
type SequenceHeader struct {
	Profile         uint8
	Tier            level.Tier
	MaxWidth        uint32
	MaxHeight       uint32
	OperatingPoints int
	Reduced         bool
	TimingInfo      bool
}

// FrameHeader is a frame header OBU or the header of a frame OBU. Size is
// the OBU payload size in bytes.
type FrameHeader struct {
	PTS          uint64
	Size         int
	ShowFrame    bool
	ShowExisting bool
	TileCols     uint32
	TileRows     uint32
}

// Payload is a metadata or tile group OBU belonging to the current frame.
type Payload struct {
	Size int
}

// TileList is a large scale tile list OBU. Bytes is the sum of its tile
// data sizes.
type TileList struct {
	Bytes     int
	TileCount int
}

type EndOfStream struct{}

func (TemporalDelimiter) event() {}
func (SequenceHeader) event()    {}
func (FrameHeader) event()       {}
func (Payload) event()           {}
func (TileList) event()          {}
func (EndOfStream) event()       {}
