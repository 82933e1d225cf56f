package av1level

import (
	"fmt"
	"strconv"

	"github.com/autobrr/go-av1level/internal/level"
)

// Field is one reported value. JSON holds the raw JSON form for numeric
// values; when empty Value is emitted as a string.
type Field struct {
	Name  string
	Key   string
	Value string
	JSON  string
}

type Section struct {
	Title  string
	Fields []Field
}

func text(name, key, value string) Field {
	return Field{Name: name, Key: key, Value: value}
}

func number(name, key, value string, raw any) Field {
	return Field{Name: name, Key: key, Value: value, JSON: fmt.Sprint(raw)}
}

func levelValue(l level.Level) string {
	return l.String()
}

// Sections lays out a report for rendering.
func Sections(r Report) []Section {
	c := r.Container
	general := Section{Title: "General", Fields: []Field{
		text("Complete name", "CompleteName", r.Path),
		text("Format", "Format", c.Format),
		text("Codec ID", "CodecID", c.FourCC),
		number("File size", "FileSize", formatBytes(c.FileSize), c.FileSize),
		number("Width", "Width", fmt.Sprintf("%d pixels", c.Width), c.Width),
		number("Height", "Height", fmt.Sprintf("%d pixels", c.Height), c.Height),
		text("Frame rate", "FrameRate", formatFrameRate(c.Rate, c.Scale)),
		number("Frame count", "FrameCount", strconv.Itoa(c.Frames), c.Frames),
	}}

	video := Section{Title: "Video"}
	if sh := r.Sequence; sh != nil {
		video.Fields = append(video.Fields,
			text("Format", "Format", "AV1"),
			number("Format profile", "Format_Profile", profileName(sh.Profile), sh.Profile),
			number("Format level", "Format_Level", levelValue(r.OldLevel), r.OldLevel.Index()),
			text("Format tier", "Format_Tier", r.Stats.Context.Tier.String()),
			text("Maximum frame size", "MaxFrameSize", fmt.Sprintf("%dx%d", sh.MaxFrameWidth, sh.MaxFrameHeight)),
			number("Bit depth", "BitDepth", fmt.Sprintf("%d bits", sh.ColorConfig.BitDepth), sh.ColorConfig.BitDepth),
			text("Still picture", "StillPicture", yesNo(sh.StillPicture)),
			text("Timing info", "TimingInfo", yesNo(sh.TimingInfoPresent)),
			number("Sequence headers", "SequenceHeaders", strconv.Itoa(len(r.Records)), len(r.Records)),
		)
	}

	s := r.Stats
	ctx := s.Context
	statistics := Section{Title: "Statistics", Fields: []Field{
		number("Temporal units", "TemporalUnits", strconv.Itoa(s.TemporalUnits), s.TemporalUnits),
		number("Shown frames", "ShownFrames", strconv.FormatUint(s.ShownFrames, 10), s.ShownFrames),
		number("Decoded frames", "DecodedFrames", strconv.FormatUint(s.DecodedFrames, 10), s.DecodedFrames),
		number("Display rate", "DisplayRate", fmt.Sprintf("%d samples/s", ctx.DisplayRate), ctx.DisplayRate),
		number("Decode rate", "DecodeRate", fmt.Sprintf("%d samples/s", ctx.DecodeRate), ctx.DecodeRate),
		number("Header rate", "HeaderRate", fmt.Sprintf("%d headers/s", ctx.HeaderRate), ctx.HeaderRate),
		number("Maximum bit rate", "BitRate_Maximum", formatMbps(ctx.Mbps), strconv.FormatFloat(ctx.Mbps, 'f', 6, 64)),
		number("Tiles", "Tiles", strconv.Itoa(int(ctx.Tiles)), ctx.Tiles),
		number("Tile columns", "TileColumns", strconv.Itoa(int(ctx.TileCols)), ctx.TileCols),
		text("Minimum compression ratio", "CompressionRatio_Minimum", formatRatio(s.MinCompressRatio)),
		number("Compression ratio level", "CompressionRatio_Level", levelValue(level.MustLookup(s.MinCRLevel)), s.MinCRLevel),
	}}
	if s.TileListBitrate > 0 {
		statistics.Fields = append(statistics.Fields,
			number("Tile list bit rate", "TileList_BitRate", fmt.Sprintf("%d b/s", s.TileListBitrate), s.TileListBitrate),
			number("Tile decode rate", "TileList_DecodeRate", fmt.Sprintf("%.0f samples/s", s.TileDecodeRate), strconv.FormatFloat(s.TileDecodeRate, 'f', 0, 64)),
		)
	}

	selected := levelValue(r.NewLevel)
	if r.Forced {
		selected += " (forced)"
	}
	result := Section{Title: "Level", Fields: []Field{
		number("Declared level", "Declared", levelValue(r.OldLevel), r.OldLevel.Index()),
		number("Selected level", "Selected", selected, r.NewLevel.Index()),
	}}
	if t := r.Transition; t != nil {
		result.Fields = append(result.Fields,
			text("Output", "Output", r.Output.String()),
			text("Tier bit", "TierBit", t.Kind.String()),
		)
		if t.DroppedBit {
			result.Fields = append(result.Fields, text("Dropped bit", "DroppedBit", "Yes"))
		}
	}

	return []Section{general, video, statistics, result}
}
