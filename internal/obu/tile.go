package obu

import (
	"github.com/autobrr/go-av1level/internal/errs"
)

const (
	maxTileWidth = 4096
	maxTileArea  = 4096 * 2304
	maxTileRows  = 64
	maxTileCols  = 64
)

type TileInfo struct {
	Uniform             bool
	TileCols            uint32
	TileRows            uint32
	TileColsLog2        uint32
	TileRowsLog2        uint32
	ContextUpdateTileID uint32
	TileSizeBytes       uint32
}

// Tiles is the total tile count of the frame.
func (t TileInfo) Tiles() uint32 {
	return t.TileCols * t.TileRows
}

func tileLog2(blkSize, target uint32) uint32 {
	var k uint32
	for (blkSize << k) < target {
		k++
	}
	return k
}

func parseTileInfo(r syntaxReader, sb128 bool, frameWidth, frameHeight uint32) TileInfo {
	miCols := 2 * ((frameWidth + 7) >> 3)
	miRows := 2 * ((frameHeight + 7) >> 3)
	var sbCols, sbRows, sbShift uint32
	if sb128 {
		sbCols = (miCols + 31) >> 5
		sbRows = (miRows + 31) >> 5
		sbShift = 5
	} else {
		sbCols = (miCols + 15) >> 4
		sbRows = (miRows + 15) >> 4
		sbShift = 4
	}
	sbSize := sbShift + 2
	maxTileWidthSb := uint32(maxTileWidth) >> sbSize
	maxTileAreaSb := uint32(maxTileArea) >> (2 * sbSize)
	minLog2TileCols := tileLog2(maxTileWidthSb, sbCols)
	maxLog2TileCols := tileLog2(1, min(sbCols, maxTileCols))
	maxLog2TileRows := tileLog2(1, min(sbRows, maxTileRows))
	minLog2Tiles := max(minLog2TileCols, tileLog2(maxTileAreaSb, sbRows*sbCols))

	ti := TileInfo{Uniform: r.flag()}
	if ti.Uniform {
		ti.TileColsLog2 = minLog2TileCols
		for ti.TileColsLog2 < maxLog2TileCols && r.flag() {
			ti.TileColsLog2++
		}
		tileWidthSb := (sbCols + (1 << ti.TileColsLog2) - 1) >> ti.TileColsLog2
		for start := uint32(0); start < sbCols; start += tileWidthSb {
			ti.TileCols++
		}

		minLog2TileRows := uint32(0)
		if minLog2Tiles > ti.TileColsLog2 {
			minLog2TileRows = minLog2Tiles - ti.TileColsLog2
		}
		ti.TileRowsLog2 = minLog2TileRows
		for ti.TileRowsLog2 < maxLog2TileRows && r.flag() {
			ti.TileRowsLog2++
		}
		tileHeightSb := (sbRows + (1 << ti.TileRowsLog2) - 1) >> ti.TileRowsLog2
		for start := uint32(0); start < sbRows; start += tileHeightSb {
			ti.TileRows++
		}
	} else {
		widestTileSb := uint32(0)
		for start := uint32(0); start < sbCols; ti.TileCols++ {
			maxWidth := min(sbCols-start, maxTileWidthSb)
			sizeSb := r.ns(maxWidth) + 1
			widestTileSb = max(widestTileSb, sizeSb)
			start += sizeSb
		}
		ti.TileColsLog2 = tileLog2(1, ti.TileCols)

		areaSb := sbRows * sbCols
		if minLog2Tiles > 0 {
			areaSb >>= minLog2Tiles + 1
		}
		maxTileHeightSb := max(areaSb/widestTileSb, 1)
		for start := uint32(0); start < sbRows; ti.TileRows++ {
			maxHeight := min(sbRows-start, maxTileHeightSb)
			start += r.ns(maxHeight) + 1
		}
		ti.TileRowsLog2 = tileLog2(1, ti.TileRows)
	}

	if ti.TileColsLog2 > 0 || ti.TileRowsLog2 > 0 {
		ti.ContextUpdateTileID = r.f(int(ti.TileRowsLog2 + ti.TileColsLog2))
		ti.TileSizeBytes = r.f(2) + 1
	}
	return ti
}

// TileListEntry is one tile_list_entry of a large scale tile list OBU.
type TileListEntry struct {
	AnchorFrameIdx uint8
	AnchorTileRow  uint8
	AnchorTileCol  uint8
	DataSize       int
}

type TileList struct {
	OutputFrameWidthInTiles  int
	OutputFrameHeightInTiles int
	Entries                  []TileListEntry
}

// TileCount is tile_count_minus_1 + 1.
func (tl *TileList) TileCount() int {
	return len(tl.Entries)
}

// ParseTileList parses a tile_list_obu payload.
func ParseTileList(payload []byte) (*TileList, error) {
	const op = "parse tile list"
	if len(payload) < 4 {
		return nil, errs.Newf(errs.MalformedStream, op, "tile list of %d bytes is too short", len(payload))
	}
	tl := &TileList{
		OutputFrameWidthInTiles:  int(payload[0]) + 1,
		OutputFrameHeightInTiles: int(payload[1]) + 1,
	}
	count := (int(payload[2])<<8 | int(payload[3])) + 1
	tl.Entries = make([]TileListEntry, 0, count)
	pos := 4
	for i := 0; i < count; i++ {
		if len(payload)-pos < 5 {
			return nil, errs.Newf(errs.MalformedStream, op, "tile list entry %d truncated", i)
		}
		e := TileListEntry{
			AnchorFrameIdx: payload[pos],
			AnchorTileRow:  payload[pos+1],
			AnchorTileCol:  payload[pos+2],
			DataSize:       (int(payload[pos+3])<<8 | int(payload[pos+4])) + 1,
		}
		pos += 5
		if len(payload)-pos < e.DataSize {
			return nil, errs.Newf(errs.MalformedStream, op, "tile list entry %d claims %d bytes, %d left", i, e.DataSize, len(payload)-pos)
		}
		pos += e.DataSize
		tl.Entries = append(tl.Entries, e)
	}
	return tl, nil
}
