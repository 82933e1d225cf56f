// Package av1level ties the IVF demuxer, the OBU parser, the statistics
// accumulator and the patcher into file level operations.
package av1level

import (
	"github.com/sirupsen/logrus"

	"github.com/autobrr/go-av1level/internal/level"
	"github.com/autobrr/go-av1level/internal/obu"
	"github.com/autobrr/go-av1level/internal/patch"
	"github.com/autobrr/go-av1level/internal/stats"
)

type AnalyzeOptions struct {
	// ForcedLevel overrides the selected level when set.
	ForcedLevel *level.Level
	Logger      logrus.FieldLogger
}

func (o AnalyzeOptions) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

// Container is the IVF header plus file facts.
type Container struct {
	Format     string
	FourCC     string
	Width      uint16
	Height     uint16
	Rate       uint32
	Scale      uint32
	FrameCount uint32
	Frames     int
	FileSize   int64
}

// Record is one sequence header OBU payload in the file.
type Record struct {
	Offset          int64
	Len             int64
	Reduced         bool
	TimingInfo      bool
	OperatingPoints int
}

type Report struct {
	Path      string
	Container Container
	Sequence  *obu.SequenceHeader
	Records   []Record
	Stats     stats.Result
	OldLevel  level.Level
	NewLevel  level.Level
	Forced    bool

	// Transition is set once Apply has run.
	Transition *patch.Transition
	Output     patch.Mode
}

// Context is the observed sequence context the level was selected from.
func (r Report) Context() level.SequenceContext {
	return r.Stats.Context
}

// Locations resolves the level position of every sequence header. It fails
// for streams the patcher cannot rewrite.
func (r Report) Locations() ([]patch.Location, error) {
	out := make([]patch.Location, 0, len(r.Records))
	for _, rec := range r.Records {
		loc, err := patch.Locate(rec.Offset, rec.Len, rec.Reduced, rec.TimingInfo, rec.OperatingPoints)
		if err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, nil
}

// plannedLocations places the level of every record at its nominal offset.
// Report mode only needs the tier coding of each header.
func (r Report) plannedLocations() []patch.Location {
	out := make([]patch.Location, 0, len(r.Records))
	for _, rec := range r.Records {
		out = append(out, patch.Nominal(rec.Offset, rec.Len, rec.Reduced))
	}
	return out
}

// Apply writes the resolved level according to mode and records the
// transition on r. Streams the patcher cannot rewrite are rejected before
// any output is created. Report mode never touches a file, so it accepts
// them.
func Apply(r *Report, mode patch.Mode, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	locs := r.plannedLocations()
	if mode.Kind != patch.ModeReport {
		var err error
		if locs, err = r.Locations(); err != nil {
			return err
		}
	}
	t, err := patch.Apply(patch.Request{
		Input:     r.Path,
		Locations: locs,
		Old:       r.OldLevel,
		New:       r.NewLevel,
		Tier:      r.Stats.Context.Tier,
	}, mode, log.WithField("file", r.Path))
	if err != nil {
		return err
	}
	if t.DroppedBit {
		log.Warnf("%s: inserting the tier bit dropped a set bit at the end of the sequence header", r.Path)
	}
	r.Transition = &t
	r.Output = mode
	return nil
}
