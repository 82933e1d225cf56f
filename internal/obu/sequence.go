package obu

// SelectScreenContentTools and SelectIntegerMV are the SELECT_* sentinels.
const (
	SelectScreenContentTools = 2
	SelectIntegerMV          = 2
)

type OperatingPoint struct {
	IDC                        uint16
	SeqLevelIdx                uint8
	SeqTier                    uint8
	DecoderModelPresent        bool
	DecoderBufferDelay         uint32
	EncoderBufferDelay         uint32
	LowDelayMode               bool
	InitialDisplayDelayPresent bool
	InitialDisplayDelayMinus1  uint8
}

type TimingInfo struct {
	NumUnitsInDisplayTick    uint32
	TimeScale                uint32
	EqualPictureInterval     bool
	NumTicksPerPictureMinus1 uint32
}

type DecoderModelInfo struct {
	BufferDelayLengthMinus1           uint8
	NumUnitsInDecodingTick            uint32
	BufferRemovalTimeLengthMinus1     uint8
	FramePresentationTimeLengthMinus1 uint8
}

type ColorConfig struct {
	BitDepth                uint8
	MonoChrome              bool
	ColorDescriptionPresent bool
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	ColorRange              bool
	SubsamplingX            bool
	SubsamplingY            bool
	ChromaSamplePosition    uint8
	SeparateUVDeltaQ        bool
}

// SequenceHeader is a parsed sequence_header_obu.
type SequenceHeader struct {
	Profile                   uint8
	StillPicture              bool
	ReducedStillPictureHeader bool

	TimingInfoPresent          bool
	TimingInfo                 TimingInfo
	DecoderModelInfoPresent    bool
	DecoderModelInfo           DecoderModelInfo
	InitialDisplayDelayPresent bool
	OperatingPoints            []OperatingPoint

	FrameWidthBits  uint8
	FrameHeightBits uint8
	MaxFrameWidth   uint32
	MaxFrameHeight  uint32

	FrameIDNumbersPresent         bool
	DeltaFrameIDLengthMinus2      uint8
	AdditionalFrameIDLengthMinus1 uint8

	Use128x128Superblock       bool
	EnableFilterIntra          bool
	EnableIntraEdgeFilter      bool
	EnableInterintraCompound   bool
	EnableMaskedCompound       bool
	EnableWarpedMotion         bool
	EnableDualFilter           bool
	EnableOrderHint            bool
	EnableJntComp              bool
	EnableRefFrameMvs          bool
	SeqForceScreenContentTools uint8
	SeqForceIntegerMV          uint8
	OrderHintBits              uint8

	EnableSuperres         bool
	EnableCdef             bool
	EnableRestoration      bool
	ColorConfig            ColorConfig
	FilmGrainParamsPresent bool
}

// SeqLevelIdx is the level declared for operating point 0.
func (s *SequenceHeader) SeqLevelIdx() uint8 {
	if len(s.OperatingPoints) == 0 {
		return 0
	}
	return s.OperatingPoints[0].SeqLevelIdx
}

// SeqTier is the tier bit declared for operating point 0.
func (s *SequenceHeader) SeqTier() uint8 {
	if len(s.OperatingPoints) == 0 {
		return 0
	}
	return s.OperatingPoints[0].SeqTier
}

// ParseSequenceHeader parses a sequence_header_obu payload.
func ParseSequenceHeader(payload []byte) (*SequenceHeader, error) {
	const op = "parse sequence header"
	r := newSyntaxReader(payload)
	sh := &SequenceHeader{}

	sh.Profile = uint8(r.f(3))
	sh.StillPicture = r.flag()
	sh.ReducedStillPictureHeader = r.flag()
	if sh.ReducedStillPictureHeader {
		sh.OperatingPoints = []OperatingPoint{{SeqLevelIdx: uint8(r.f(5))}}
	} else {
		sh.TimingInfoPresent = r.flag()
		if sh.TimingInfoPresent {
			sh.TimingInfo = parseTimingInfo(r)
			sh.DecoderModelInfoPresent = r.flag()
			if sh.DecoderModelInfoPresent {
				sh.DecoderModelInfo = DecoderModelInfo{
					BufferDelayLengthMinus1:           uint8(r.f(5)),
					NumUnitsInDecodingTick:            r.f(32),
					BufferRemovalTimeLengthMinus1:     uint8(r.f(5)),
					FramePresentationTimeLengthMinus1: uint8(r.f(5)),
				}
			}
		}
		sh.InitialDisplayDelayPresent = r.flag()
		cnt := int(r.f(5)) + 1
		sh.OperatingPoints = make([]OperatingPoint, cnt)
		for i := range sh.OperatingPoints {
			pt := &sh.OperatingPoints[i]
			pt.IDC = uint16(r.f(12))
			pt.SeqLevelIdx = uint8(r.f(5))
			if pt.SeqLevelIdx > 7 {
				pt.SeqTier = uint8(r.f(1))
			}
			if sh.DecoderModelInfoPresent {
				pt.DecoderModelPresent = r.flag()
				if pt.DecoderModelPresent {
					n := int(sh.DecoderModelInfo.BufferDelayLengthMinus1) + 1
					pt.DecoderBufferDelay = r.f(n)
					pt.EncoderBufferDelay = r.f(n)
					pt.LowDelayMode = r.flag()
				}
			}
			if sh.InitialDisplayDelayPresent {
				pt.InitialDisplayDelayPresent = r.flag()
				if pt.InitialDisplayDelayPresent {
					pt.InitialDisplayDelayMinus1 = uint8(r.f(4))
				}
			}
		}
	}

	sh.FrameWidthBits = uint8(r.f(4)) + 1
	sh.FrameHeightBits = uint8(r.f(4)) + 1
	sh.MaxFrameWidth = r.f(int(sh.FrameWidthBits)) + 1
	sh.MaxFrameHeight = r.f(int(sh.FrameHeightBits)) + 1
	if !sh.ReducedStillPictureHeader {
		sh.FrameIDNumbersPresent = r.flag()
	}
	if sh.FrameIDNumbersPresent {
		sh.DeltaFrameIDLengthMinus2 = uint8(r.f(4))
		sh.AdditionalFrameIDLengthMinus1 = uint8(r.f(3))
	}
	sh.Use128x128Superblock = r.flag()
	sh.EnableFilterIntra = r.flag()
	sh.EnableIntraEdgeFilter = r.flag()
	if sh.ReducedStillPictureHeader {
		sh.SeqForceScreenContentTools = SelectScreenContentTools
		sh.SeqForceIntegerMV = SelectIntegerMV
	} else {
		sh.EnableInterintraCompound = r.flag()
		sh.EnableMaskedCompound = r.flag()
		sh.EnableWarpedMotion = r.flag()
		sh.EnableDualFilter = r.flag()
		sh.EnableOrderHint = r.flag()
		if sh.EnableOrderHint {
			sh.EnableJntComp = r.flag()
			sh.EnableRefFrameMvs = r.flag()
		}
		if r.flag() { // seq_choose_screen_content_tools
			sh.SeqForceScreenContentTools = SelectScreenContentTools
		} else {
			sh.SeqForceScreenContentTools = uint8(r.f(1))
		}
		if sh.SeqForceScreenContentTools > 0 {
			if r.flag() { // seq_choose_integer_mv
				sh.SeqForceIntegerMV = SelectIntegerMV
			} else {
				sh.SeqForceIntegerMV = uint8(r.f(1))
			}
		} else {
			sh.SeqForceIntegerMV = SelectIntegerMV
		}
		if sh.EnableOrderHint {
			sh.OrderHintBits = uint8(r.f(3)) + 1
		}
	}
	sh.EnableSuperres = r.flag()
	sh.EnableCdef = r.flag()
	sh.EnableRestoration = r.flag()
	sh.ColorConfig = parseColorConfig(r, sh.Profile)
	sh.FilmGrainParamsPresent = r.flag()

	if err := r.err(op); err != nil {
		return nil, err
	}
	return sh, nil
}

func parseTimingInfo(r syntaxReader) TimingInfo {
	ti := TimingInfo{
		NumUnitsInDisplayTick: r.f(32),
		TimeScale:             r.f(32),
		EqualPictureInterval:  r.flag(),
	}
	if ti.EqualPictureInterval {
		ti.NumTicksPerPictureMinus1 = r.uvlc()
	}
	return ti
}

// Color description values the color config syntax depends on.
const (
	ColorPrimariesBT709 = 1
	TransferSRGB        = 13
	MatrixIdentity      = 0
	ColorUnspecified    = 2
)

func parseColorConfig(r syntaxReader, profile uint8) ColorConfig {
	cc := ColorConfig{BitDepth: 8}
	highBitDepth := r.flag()
	if profile == 2 && highBitDepth {
		if r.flag() { // twelve_bit
			cc.BitDepth = 12
		} else {
			cc.BitDepth = 10
		}
	} else if highBitDepth {
		cc.BitDepth = 10
	}
	if profile != 1 {
		cc.MonoChrome = r.flag()
	}
	cc.ColorDescriptionPresent = r.flag()
	if cc.ColorDescriptionPresent {
		cc.ColorPrimaries = uint8(r.f(8))
		cc.TransferCharacteristics = uint8(r.f(8))
		cc.MatrixCoefficients = uint8(r.f(8))
	} else {
		cc.ColorPrimaries = ColorUnspecified
		cc.TransferCharacteristics = ColorUnspecified
		cc.MatrixCoefficients = ColorUnspecified
	}
	switch {
	case cc.MonoChrome:
		cc.ColorRange = r.flag()
		cc.SubsamplingX, cc.SubsamplingY = true, true
		return cc
	case cc.ColorPrimaries == ColorPrimariesBT709 && cc.TransferCharacteristics == TransferSRGB && cc.MatrixCoefficients == MatrixIdentity:
		cc.ColorRange = true
	default:
		cc.ColorRange = r.flag()
		switch profile {
		case 0:
			cc.SubsamplingX, cc.SubsamplingY = true, true
		case 1:
		default:
			if cc.BitDepth == 12 {
				cc.SubsamplingX = r.flag()
				if cc.SubsamplingX {
					cc.SubsamplingY = r.flag()
				}
			} else {
				cc.SubsamplingX = true
			}
		}
		if cc.SubsamplingX && cc.SubsamplingY {
			cc.ChromaSamplePosition = uint8(r.f(2))
		}
	}
	cc.SeparateUVDeltaQ = r.flag()
	return cc
}
