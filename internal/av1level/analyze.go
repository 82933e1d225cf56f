package av1level

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/autobrr/go-av1level/internal/errs"
	"github.com/autobrr/go-av1level/internal/ivf"
	"github.com/autobrr/go-av1level/internal/level"
	"github.com/autobrr/go-av1level/internal/obu"
	"github.com/autobrr/go-av1level/internal/stats"
)

func AnalyzeFile(path string) (Report, error) {
	return AnalyzeFileWithOptions(path, AnalyzeOptions{})
}

// AnalyzeFileWithOptions reads every OBU of the IVF file at path and
// resolves the level the stream needs.
func AnalyzeFileWithOptions(path string, opts AnalyzeOptions) (Report, error) {
	log := opts.logger().WithField("file", path)

	stat, err := os.Stat(path)
	if err != nil {
		return Report{}, err
	}
	file, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer file.Close()

	rd, err := ivf.NewReader(file)
	if err != nil {
		return Report{}, err
	}
	hdr := rd.Header()
	timeScale := hdr.TimeScale()
	if !(timeScale > 0) {
		return Report{}, errs.Newf(errs.MalformedStream, "analyze", "invalid timebase %d/%d", hdr.Scale, hdr.Rate)
	}
	log.WithFields(logrus.Fields{
		"width":     hdr.Width,
		"height":    hdr.Height,
		"timescale": timeScale,
	}).Debug("ivf header")

	a := &analysis{
		log: log,
		acc: stats.New(stats.Config{TimeScale: timeScale, Width: uint32(hdr.Width), Height: uint32(hdr.Height)}),
		dec: obu.NewDecoder(),
	}
	for {
		frame, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Report{}, err
		}
		if err := a.frame(frame); err != nil {
			return Report{}, err
		}
	}

	if err := a.acc.Ingest(stats.EndOfStream{}); err != nil {
		return Report{}, err
	}
	res, err := a.acc.Finalize()
	if err != nil {
		return Report{}, err
	}

	old := level.MustLookup(a.seq.SeqLevelIdx())
	selected := level.Resolve(res.Context, res.MinCRLevel, opts.ForcedLevel)
	log.WithFields(logrus.Fields{
		"old":   old.Index(),
		"level": selected.Index(),
		"cr":    res.MinCRLevel,
	}).Debug("level resolved")

	return Report{
		Path: path,
		Container: Container{
			Format:     "IVF",
			FourCC:     hdr.FourCC,
			Width:      hdr.Width,
			Height:     hdr.Height,
			Rate:       hdr.Rate,
			Scale:      hdr.Scale,
			FrameCount: hdr.FrameCount,
			Frames:     a.frames,
			FileSize:   stat.Size(),
		},
		Sequence: a.seq,
		Records:  a.records,
		Stats:    res,
		OldLevel: old,
		NewLevel: selected,
		Forced:   opts.ForcedLevel != nil,
	}, nil
}

// analysis turns demuxed frames into accumulator events.
type analysis struct {
	log     logrus.FieldLogger
	acc     *stats.Accumulator
	dec     *obu.Decoder
	seq     *obu.SequenceHeader
	records []Record
	frames  int
}

func (a *analysis) frame(f ivf.Frame) error {
	a.frames++
	data := f.Data
	for pos := 0; pos < len(data); {
		h, err := obu.ParseHeader(data[pos:])
		if err != nil {
			return errors.Wrapf(err, "frame at offset %d", f.Offset)
		}
		payload := data[pos+h.HeaderLen : pos+h.Len()]
		offset := f.Offset + int64(pos+h.HeaderLen)
		if err := a.obu(h, payload, offset, f.PTS); err != nil {
			return errors.Wrapf(err, "%s at offset %d", h.Type, offset)
		}
		pos += h.Len()
	}
	return nil
}

func (a *analysis) obu(h obu.Header, payload []byte, offset int64, pts uint64) error {
	switch h.Type {
	case obu.TypeTemporalDelimiter:
		return a.acc.Ingest(stats.TemporalDelimiter{PTS: pts})
	case obu.TypeSequenceHeader:
		return a.sequenceHeader(payload, offset)
	case obu.TypeFrameHeader, obu.TypeFrame:
		fh, err := a.dec.ParseFrameHeader(payload, h.TemporalID, h.SpatialID)
		if err != nil {
			return err
		}
		return a.acc.Ingest(stats.FrameHeader{
			PTS:          pts,
			Size:         len(payload),
			ShowFrame:    fh.ShowFrame,
			ShowExisting: fh.ShowExistingFrame,
			TileCols:     fh.TileInfo.TileCols,
			TileRows:     fh.TileInfo.TileRows,
		})
	case obu.TypeTileGroup, obu.TypeMetadata, obu.TypeRedundantFrameHeader:
		return a.acc.Ingest(stats.Payload{Size: len(payload)})
	case obu.TypeTileList:
		tl, err := obu.ParseTileList(payload)
		if err != nil {
			return err
		}
		n := 0
		for _, e := range tl.Entries {
			n += e.DataSize
		}
		return a.acc.Ingest(stats.TileList{Bytes: n, TileCount: tl.TileCount()})
	default:
		a.log.WithField("offset", offset).Debugf("skipping %s", h.Type)
	}
	return nil
}

func (a *analysis) sequenceHeader(payload []byte, offset int64) error {
	sh, err := obu.ParseSequenceHeader(payload)
	if err != nil {
		return err
	}
	if a.seq != nil && sh.SeqLevelIdx() != a.seq.SeqLevelIdx() {
		return errs.Newf(errs.ConsistencyCheckFailure, "sequence header", "declares level %s, earlier header declared %s",
			level.MustLookup(sh.SeqLevelIdx()), level.MustLookup(a.seq.SeqLevelIdx()))
	}

	rec := Record{
		Offset:          offset,
		Len:             int64(len(payload)),
		Reduced:         sh.ReducedStillPictureHeader,
		TimingInfo:      sh.TimingInfoPresent,
		OperatingPoints: len(sh.OperatingPoints),
	}
	a.log.WithFields(logrus.Fields{
		"offset": offset,
		"level":  sh.SeqLevelIdx(),
	}).Debug("sequence header")

	if err := a.acc.Ingest(stats.SequenceHeader{
		Profile:         sh.Profile,
		Tier:            level.TierFromBit(sh.SeqTier()),
		MaxWidth:        sh.MaxFrameWidth,
		MaxHeight:       sh.MaxFrameHeight,
		OperatingPoints: rec.OperatingPoints,
		Reduced:         rec.Reduced,
		TimingInfo:      rec.TimingInfo,
	}); err != nil {
		return err
	}
	if a.seq == nil {
		a.seq = sh
	}
	a.records = append(a.records, rec)
	a.dec.SetSequenceHeader(sh)
	return nil
}
