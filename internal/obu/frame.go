package obu

import (
	"github.com/autobrr/go-av1level/internal/errs"
)

type FrameType uint8

const (
	KeyFrame       FrameType = 0
	InterFrame     FrameType = 1
	IntraOnlyFrame FrameType = 2
	SwitchFrame    FrameType = 3
)

func (t FrameType) String() string {
	switch t {
	case KeyFrame:
		return "KEY_FRAME"
	case InterFrame:
		return "INTER_FRAME"
	case IntraOnlyFrame:
		return "INTRA_ONLY_FRAME"
	default:
		return "SWITCH_FRAME"
	}
}

const (
	numRefFrames      = 8
	refsPerFrame      = 7
	primaryRefNone    = 7
	allFrames         = 0xFF
	superresNum       = 8
	superresDenomMin  = 9
	superresDenomBits = 3
)

// FrameHeader holds the uncompressed_header fields up to tile_info.
type FrameHeader struct {
	ShowExistingFrame        bool
	FrameToShowMapIdx        uint8
	FrameType                FrameType
	ShowFrame                bool
	ShowableFrame            bool
	ErrorResilientMode       bool
	DisableCdfUpdate         bool
	AllowScreenContentTools  bool
	ForceIntegerMV           bool
	CurrentFrameID           uint32
	FrameSizeOverride        bool
	OrderHint                uint32
	PrimaryRefFrame          uint8
	RefreshFrameFlags        uint8
	RefFrameIdx              [refsPerFrame]uint8
	FrameWidth               uint32
	FrameHeight              uint32
	UpscaledWidth            uint32
	RenderWidth              uint32
	RenderHeight             uint32
	UseSuperres              bool
	AllowIntraBC             bool
	AllowHighPrecisionMV     bool
	IsFilterSwitchable       bool
	InterpolationFilter      uint8
	IsMotionModeSwitchable   bool
	UseRefFrameMvs           bool
	DisableFrameEndUpdateCdf bool
	TileInfo                 TileInfo
}

// IsIntra reports whether the frame only uses intra prediction.
func (fh *FrameHeader) IsIntra() bool {
	return fh.FrameType == KeyFrame || fh.FrameType == IntraOnlyFrame
}

type refFrame struct {
	valid         bool
	frameID       uint32
	upscaledWidth uint32
	frameWidth    uint32
	frameHeight   uint32
	renderWidth   uint32
	renderHeight  uint32
	frameType     FrameType
	orderHint     uint32
	tileInfo      TileInfo
}

// Decoder tracks the sequence header and reference frame state needed to
// parse frame headers in decode order.
type Decoder struct {
	Sequence *SequenceHeader
	refs     [numRefFrames]refFrame
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// SetSequenceHeader installs a new active sequence header.
func (d *Decoder) SetSequenceHeader(sh *SequenceHeader) {
	d.Sequence = sh
}

// ParseFrameHeader parses a frame_header_obu (or the header part of a
// frame_obu) and applies the reference frame update process.
func (d *Decoder) ParseFrameHeader(payload []byte, temporalID, spatialID uint8) (*FrameHeader, error) {
	const op = "parse frame header"
	sh := d.Sequence
	if sh == nil {
		return nil, errs.New(errs.HeaderOrderViolation, op, "frame header found before sequence header")
	}
	r := newSyntaxReader(payload)
	fh := &FrameHeader{}

	idLen := 0
	if sh.FrameIDNumbersPresent {
		idLen = int(sh.AdditionalFrameIDLengthMinus1) + int(sh.DeltaFrameIDLengthMinus2) + 3
	}

	if sh.ReducedStillPictureHeader {
		fh.FrameType = KeyFrame
		fh.ShowFrame = true
	} else {
		fh.ShowExistingFrame = r.flag()
		if fh.ShowExistingFrame {
			fh.FrameToShowMapIdx = uint8(r.f(3))
			if sh.DecoderModelInfoPresent && !sh.TimingInfo.EqualPictureInterval {
				r.f(int(sh.DecoderModelInfo.FramePresentationTimeLengthMinus1) + 1)
			}
			if sh.FrameIDNumbersPresent {
				r.f(idLen) // display_frame_id
			}
			if err := r.err(op); err != nil {
				return nil, err
			}
			d.showExisting(fh)
			return fh, nil
		}
		fh.FrameType = FrameType(r.f(2))
		fh.ShowFrame = r.flag()
		if fh.ShowFrame && sh.DecoderModelInfoPresent && !sh.TimingInfo.EqualPictureInterval {
			r.f(int(sh.DecoderModelInfo.FramePresentationTimeLengthMinus1) + 1)
		}
		if fh.ShowFrame {
			fh.ShowableFrame = fh.FrameType != KeyFrame
		} else {
			fh.ShowableFrame = r.flag()
		}
		if fh.FrameType == SwitchFrame || (fh.FrameType == KeyFrame && fh.ShowFrame) {
			fh.ErrorResilientMode = true
		} else {
			fh.ErrorResilientMode = r.flag()
		}
	}

	if fh.FrameType == KeyFrame && fh.ShowFrame {
		for i := range d.refs {
			d.refs[i].valid = false
			d.refs[i].orderHint = 0
		}
	}

	fh.DisableCdfUpdate = r.flag()
	if sh.SeqForceScreenContentTools == SelectScreenContentTools {
		fh.AllowScreenContentTools = r.flag()
	} else {
		fh.AllowScreenContentTools = sh.SeqForceScreenContentTools == 1
	}
	if fh.AllowScreenContentTools {
		if sh.SeqForceIntegerMV == SelectIntegerMV {
			fh.ForceIntegerMV = r.flag()
		} else {
			fh.ForceIntegerMV = sh.SeqForceIntegerMV == 1
		}
	}
	if fh.IsIntra() {
		fh.ForceIntegerMV = true
	}

	if sh.FrameIDNumbersPresent {
		fh.CurrentFrameID = r.f(idLen)
		d.markRefFrames(fh.CurrentFrameID, idLen, int(sh.DeltaFrameIDLengthMinus2)+2)
	}

	switch {
	case fh.FrameType == SwitchFrame:
		fh.FrameSizeOverride = true
	case sh.ReducedStillPictureHeader:
	default:
		fh.FrameSizeOverride = r.flag()
	}

	fh.OrderHint = r.f(int(sh.OrderHintBits))
	if fh.IsIntra() || fh.ErrorResilientMode {
		fh.PrimaryRefFrame = primaryRefNone
	} else {
		fh.PrimaryRefFrame = uint8(r.f(3))
	}

	if sh.DecoderModelInfoPresent {
		if r.flag() { // buffer_removal_time_present_flag
			for _, pt := range sh.OperatingPoints {
				if !pt.DecoderModelPresent {
					continue
				}
				inTemporal := (pt.IDC>>temporalID)&1 != 0
				inSpatial := (pt.IDC>>(spatialID+8))&1 != 0
				if pt.IDC == 0 || (inTemporal && inSpatial) {
					r.f(int(sh.DecoderModelInfo.BufferRemovalTimeLengthMinus1) + 1)
				}
			}
		}
	}

	if fh.FrameType == SwitchFrame || (fh.FrameType == KeyFrame && fh.ShowFrame) {
		fh.RefreshFrameFlags = allFrames
	} else {
		fh.RefreshFrameFlags = uint8(r.f(8))
	}

	if (!fh.IsIntra() || fh.RefreshFrameFlags != allFrames) && fh.ErrorResilientMode && sh.EnableOrderHint {
		for i := range d.refs {
			hint := r.f(int(sh.OrderHintBits))
			if hint != d.refs[i].orderHint || !d.refs[i].valid {
				d.refs[i] = refFrame{orderHint: hint}
			}
		}
	}

	if fh.IsIntra() {
		d.frameSize(r, fh)
		d.renderSize(r, fh)
		if fh.AllowScreenContentTools && fh.UpscaledWidth == fh.FrameWidth {
			fh.AllowIntraBC = r.flag()
		}
	} else {
		shortSignaling := false
		if sh.EnableOrderHint {
			shortSignaling = r.flag()
			if shortSignaling {
				last := uint8(r.f(3))
				gold := uint8(r.f(3))
				fh.RefFrameIdx = d.setFrameRefs(fh.OrderHint, last, gold)
			}
		}
		for i := 0; i < refsPerFrame; i++ {
			if !shortSignaling {
				fh.RefFrameIdx[i] = uint8(r.f(3))
			}
			if sh.FrameIDNumbersPresent {
				r.f(int(sh.DeltaFrameIDLengthMinus2) + 2) // delta_frame_id_minus_1
			}
		}
		if fh.FrameSizeOverride && !fh.ErrorResilientMode {
			d.frameSizeWithRefs(r, fh)
		} else {
			d.frameSize(r, fh)
			d.renderSize(r, fh)
		}
		if !fh.ForceIntegerMV {
			fh.AllowHighPrecisionMV = r.flag()
		}
		fh.IsFilterSwitchable = r.flag()
		if !fh.IsFilterSwitchable {
			fh.InterpolationFilter = uint8(r.f(2))
		}
		fh.IsMotionModeSwitchable = r.flag()
		if !fh.ErrorResilientMode && sh.EnableRefFrameMvs {
			fh.UseRefFrameMvs = r.flag()
		}
	}

	if sh.ReducedStillPictureHeader || fh.DisableCdfUpdate {
		fh.DisableFrameEndUpdateCdf = true
	} else {
		fh.DisableFrameEndUpdateCdf = r.flag()
	}

	fh.TileInfo = parseTileInfo(r, sh.Use128x128Superblock, fh.FrameWidth, fh.FrameHeight)
	if err := r.err(op); err != nil {
		return nil, err
	}
	d.refresh(fh)
	return fh, nil
}

func (d *Decoder) showExisting(fh *FrameHeader) {
	ref := d.refs[fh.FrameToShowMapIdx]
	fh.FrameType = ref.frameType
	fh.ShowFrame = true
	fh.FrameWidth = ref.frameWidth
	fh.FrameHeight = ref.frameHeight
	fh.UpscaledWidth = ref.upscaledWidth
	fh.RenderWidth = ref.renderWidth
	fh.RenderHeight = ref.renderHeight
	fh.OrderHint = ref.orderHint
	fh.TileInfo = ref.tileInfo
	if fh.FrameType == KeyFrame {
		fh.RefreshFrameFlags = allFrames
		for i := range d.refs {
			d.refs[i] = ref
		}
	}
}

func (d *Decoder) refresh(fh *FrameHeader) {
	for i := range d.refs {
		if fh.RefreshFrameFlags&(1<<i) == 0 {
			continue
		}
		d.refs[i] = refFrame{
			valid:         true,
			frameID:       fh.CurrentFrameID,
			upscaledWidth: fh.UpscaledWidth,
			frameWidth:    fh.FrameWidth,
			frameHeight:   fh.FrameHeight,
			renderWidth:   fh.RenderWidth,
			renderHeight:  fh.RenderHeight,
			frameType:     fh.FrameType,
			orderHint:     fh.OrderHint,
			tileInfo:      fh.TileInfo,
		}
	}
}

func (d *Decoder) markRefFrames(currentID uint32, idLen, diffLen int) {
	diff := uint32(1) << diffLen
	for i := range d.refs {
		id := d.refs[i].frameID
		if currentID > diff {
			if id > currentID || id < currentID-diff {
				d.refs[i].valid = false
			}
		} else if id > currentID && id < (uint32(1)<<idLen)+currentID-diff {
			d.refs[i].valid = false
		}
	}
}

func (d *Decoder) frameSize(r syntaxReader, fh *FrameHeader) {
	sh := d.Sequence
	if fh.FrameSizeOverride {
		fh.FrameWidth = r.f(int(sh.FrameWidthBits)) + 1
		fh.FrameHeight = r.f(int(sh.FrameHeightBits)) + 1
	} else {
		fh.FrameWidth = sh.MaxFrameWidth
		fh.FrameHeight = sh.MaxFrameHeight
	}
	d.superresParams(r, fh)
}

func (d *Decoder) superresParams(r syntaxReader, fh *FrameHeader) {
	if d.Sequence.EnableSuperres {
		fh.UseSuperres = r.flag()
	}
	denom := uint32(superresNum)
	if fh.UseSuperres {
		denom = r.f(superresDenomBits) + superresDenomMin
	}
	fh.UpscaledWidth = fh.FrameWidth
	fh.FrameWidth = (fh.UpscaledWidth*superresNum + denom/2) / denom
}

func (d *Decoder) renderSize(r syntaxReader, fh *FrameHeader) {
	if r.flag() { // render_and_frame_size_different
		fh.RenderWidth = r.f(16) + 1
		fh.RenderHeight = r.f(16) + 1
		return
	}
	fh.RenderWidth = fh.UpscaledWidth
	fh.RenderHeight = fh.FrameHeight
}

func (d *Decoder) frameSizeWithRefs(r syntaxReader, fh *FrameHeader) {
	for i := 0; i < refsPerFrame; i++ {
		if !r.flag() { // found_ref
			continue
		}
		ref := d.refs[fh.RefFrameIdx[i]]
		fh.UpscaledWidth = ref.upscaledWidth
		fh.FrameWidth = fh.UpscaledWidth
		fh.FrameHeight = ref.frameHeight
		fh.RenderWidth = ref.renderWidth
		fh.RenderHeight = ref.renderHeight
		d.superresParams(r, fh)
		return
	}
	d.frameSize(r, fh)
	d.renderSize(r, fh)
}

func (d *Decoder) relativeDist(a, b uint32) int32 {
	bitsN := d.Sequence.OrderHintBits
	if bitsN == 0 {
		return 0
	}
	diff := int32(a) - int32(b)
	m := int32(1) << (bitsN - 1)
	return (diff & (m - 1)) - (diff & m)
}

// setFrameRefs implements the frame_refs_short_signaling reference
// selection process (AV1 section 7.8).
func (d *Decoder) setFrameRefs(orderHint uint32, last, gold uint8) [refsPerFrame]uint8 {
	var refIdx [refsPerFrame]int
	for i := range refIdx {
		refIdx[i] = -1
	}
	refIdx[0] = int(last) // LAST_FRAME
	refIdx[3] = int(gold) // GOLDEN_FRAME

	var used [numRefFrames]bool
	used[last] = true
	used[gold] = true

	curHint := int32(1) << (d.Sequence.OrderHintBits - 1)
	var shifted [numRefFrames]int32
	for i := range shifted {
		shifted[i] = curHint + d.relativeDist(d.refs[i].orderHint, orderHint)
	}

	find := func(backward, latest bool) int {
		ref := -1
		var best int32
		for i := 0; i < numRefFrames; i++ {
			hint := shifted[i]
			if used[i] || (hint >= curHint) != backward {
				continue
			}
			if ref < 0 || (latest && hint >= best) || (!latest && hint < best) {
				ref = i
				best = hint
			}
		}
		return ref
	}

	// ALTREF_FRAME, then BWDREF_FRAME, then ALTREF2_FRAME.
	if ref := find(true, true); ref >= 0 {
		refIdx[6] = ref
		used[ref] = true
	}
	if ref := find(true, false); ref >= 0 {
		refIdx[4] = ref
		used[ref] = true
	}
	if ref := find(true, false); ref >= 0 {
		refIdx[5] = ref
		used[ref] = true
	}
	// LAST2, LAST3, BWDREF, ALTREF2, ALTREF fall back to forward refs.
	for _, slot := range []int{1, 2, 4, 5, 6} {
		if refIdx[slot] >= 0 {
			continue
		}
		if ref := find(false, true); ref >= 0 {
			refIdx[slot] = ref
			used[ref] = true
		}
	}

	earliest := -1
	var earliestHint int32
	for i := 0; i < numRefFrames; i++ {
		if earliest < 0 || shifted[i] < earliestHint {
			earliest = i
			earliestHint = shifted[i]
		}
	}

	var out [refsPerFrame]uint8
	for i, ref := range refIdx {
		if ref < 0 {
			ref = earliest
		}
		out[i] = uint8(ref)
	}
	return out
}
