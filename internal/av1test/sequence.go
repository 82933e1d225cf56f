package av1test

import (
	"bytes"

	"github.com/Eyevinn/mp4ff/bits"
	"github.com/pkg/errors"

	"github.com/autobrr/go-av1level/internal/obu"
)

// syntaxWriter counts written bits for trailing_bits.
type syntaxWriter struct {
	bw *bits.Writer
	n  int
}

func (w *syntaxWriter) f(n int, v uint32) {
	if n > 0 {
		w.bw.Write(uint(v), n)
		w.n += n
	}
}

func (w *syntaxWriter) flag(b bool) {
	if b {
		w.f(1, 1)
	} else {
		w.f(1, 0)
	}
}

func (w *syntaxWriter) uvlc(v uint32) {
	x := uint64(v) + 1
	n := 0
	for t := x; t > 1; t >>= 1 {
		n++
	}
	w.f(n, 0)
	w.bw.Write(uint(x), n+1)
	w.n += n + 1
}

func (w *syntaxWriter) trailingBits() {
	w.f(1, 1)
	if rem := w.n % 8; rem != 0 {
		w.f(8-rem, 0)
	}
}

// MarshalSequenceHeader encodes sh as a sequence_header_obu payload,
// including trailing bits. The inverse of obu.ParseSequenceHeader.
func MarshalSequenceHeader(sh *obu.SequenceHeader) ([]byte, error) {
	var buf bytes.Buffer
	bw := bits.NewWriter(&buf)
	w := &syntaxWriter{bw: bw}

	w.f(3, uint32(sh.Profile))
	w.flag(sh.StillPicture)
	w.flag(sh.ReducedStillPictureHeader)
	if len(sh.OperatingPoints) == 0 {
		return nil, errors.New("sequence header needs at least one operating point")
	}
	if sh.ReducedStillPictureHeader {
		w.f(5, uint32(sh.OperatingPoints[0].SeqLevelIdx))
	} else {
		w.flag(sh.TimingInfoPresent)
		if sh.TimingInfoPresent {
			ti := sh.TimingInfo
			w.f(32, ti.NumUnitsInDisplayTick)
			w.f(32, ti.TimeScale)
			w.flag(ti.EqualPictureInterval)
			if ti.EqualPictureInterval {
				w.uvlc(ti.NumTicksPerPictureMinus1)
			}
			w.flag(sh.DecoderModelInfoPresent)
			if sh.DecoderModelInfoPresent {
				dm := sh.DecoderModelInfo
				w.f(5, uint32(dm.BufferDelayLengthMinus1))
				w.f(32, dm.NumUnitsInDecodingTick)
				w.f(5, uint32(dm.BufferRemovalTimeLengthMinus1))
				w.f(5, uint32(dm.FramePresentationTimeLengthMinus1))
			}
		}
		w.flag(sh.InitialDisplayDelayPresent)
		w.f(5, uint32(len(sh.OperatingPoints)-1))
		for _, pt := range sh.OperatingPoints {
			w.f(12, uint32(pt.IDC))
			w.f(5, uint32(pt.SeqLevelIdx))
			if pt.SeqLevelIdx > 7 {
				w.f(1, uint32(pt.SeqTier))
			}
			if sh.DecoderModelInfoPresent {
				w.flag(pt.DecoderModelPresent)
				if pt.DecoderModelPresent {
					n := int(sh.DecoderModelInfo.BufferDelayLengthMinus1) + 1
					w.f(n, pt.DecoderBufferDelay)
					w.f(n, pt.EncoderBufferDelay)
					w.flag(pt.LowDelayMode)
				}
			}
			if sh.InitialDisplayDelayPresent {
				w.flag(pt.InitialDisplayDelayPresent)
				if pt.InitialDisplayDelayPresent {
					w.f(4, uint32(pt.InitialDisplayDelayMinus1))
				}
			}
		}
	}

	w.f(4, uint32(sh.FrameWidthBits)-1)
	w.f(4, uint32(sh.FrameHeightBits)-1)
	w.f(int(sh.FrameWidthBits), sh.MaxFrameWidth-1)
	w.f(int(sh.FrameHeightBits), sh.MaxFrameHeight-1)
	if !sh.ReducedStillPictureHeader {
		w.flag(sh.FrameIDNumbersPresent)
	}
	if sh.FrameIDNumbersPresent {
		w.f(4, uint32(sh.DeltaFrameIDLengthMinus2))
		w.f(3, uint32(sh.AdditionalFrameIDLengthMinus1))
	}
	w.flag(sh.Use128x128Superblock)
	w.flag(sh.EnableFilterIntra)
	w.flag(sh.EnableIntraEdgeFilter)
	if !sh.ReducedStillPictureHeader {
		w.flag(sh.EnableInterintraCompound)
		w.flag(sh.EnableMaskedCompound)
		w.flag(sh.EnableWarpedMotion)
		w.flag(sh.EnableDualFilter)
		w.flag(sh.EnableOrderHint)
		if sh.EnableOrderHint {
			w.flag(sh.EnableJntComp)
			w.flag(sh.EnableRefFrameMvs)
		}
		w.flag(sh.SeqForceScreenContentTools == obu.SelectScreenContentTools)
		if sh.SeqForceScreenContentTools != obu.SelectScreenContentTools {
			w.f(1, uint32(sh.SeqForceScreenContentTools))
		}
		if sh.SeqForceScreenContentTools > 0 {
			w.flag(sh.SeqForceIntegerMV == obu.SelectIntegerMV)
			if sh.SeqForceIntegerMV != obu.SelectIntegerMV {
				w.f(1, uint32(sh.SeqForceIntegerMV))
			}
		}
		if sh.EnableOrderHint {
			w.f(3, uint32(sh.OrderHintBits)-1)
		}
	}
	w.flag(sh.EnableSuperres)
	w.flag(sh.EnableCdef)
	w.flag(sh.EnableRestoration)
	writeColorConfig(w, sh.Profile, sh.ColorConfig)
	w.flag(sh.FilmGrainParamsPresent)
	w.trailingBits()

	bw.Flush()
	if err := bw.AccError(); err != nil {
		return nil, errors.Wrap(err, "write sequence header")
	}
	return buf.Bytes(), nil
}

func writeColorConfig(w *syntaxWriter, profile uint8, cc obu.ColorConfig) {
	w.flag(cc.BitDepth > 8)
	if profile == 2 && cc.BitDepth > 8 {
		w.flag(cc.BitDepth == 12)
	}
	if profile != 1 {
		w.flag(cc.MonoChrome)
	}
	w.flag(cc.ColorDescriptionPresent)
	if cc.ColorDescriptionPresent {
		w.f(8, uint32(cc.ColorPrimaries))
		w.f(8, uint32(cc.TransferCharacteristics))
		w.f(8, uint32(cc.MatrixCoefficients))
	}
	switch {
	case cc.MonoChrome:
		w.flag(cc.ColorRange)
		return
	case cc.ColorPrimaries == obu.ColorPrimariesBT709 && cc.TransferCharacteristics == obu.TransferSRGB && cc.MatrixCoefficients == obu.MatrixIdentity:
	default:
		w.flag(cc.ColorRange)
		if profile == 2 && cc.BitDepth == 12 {
			w.flag(cc.SubsamplingX)
			if cc.SubsamplingX {
				w.flag(cc.SubsamplingY)
			}
		}
		if cc.SubsamplingX && cc.SubsamplingY {
			w.f(2, uint32(cc.ChromaSamplePosition))
		}
	}
	w.flag(cc.SeparateUVDeltaQ)
}
