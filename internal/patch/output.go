package patch

import (
	"io"
	"os"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/autobrr/go-av1level/internal/errs"
	"github.com/autobrr/go-av1level/internal/level"
)

type ModeKind uint8

const (
	ModeReport ModeKind = iota
	ModeInPlace
	ModeFile
)

// Mode selects where a patch is written.
type Mode struct {
	Kind ModeKind
	Path string
}

// Report leaves every file untouched.
func Report() Mode {
	return Mode{Kind: ModeReport}
}

// InPlace patches the input file itself.
func InPlace() Mode {
	return Mode{Kind: ModeInPlace}
}

// File writes a patched copy of the input to path.
func File(path string) Mode {
	return Mode{Kind: ModeFile, Path: path}
}

func (m Mode) String() string {
	switch m.Kind {
	case ModeInPlace:
		return "in place"
	case ModeFile:
		return "file " + m.Path
	default:
		return "report"
	}
}

// Request is one level rewrite of the file at Input. Streams repeat the
// sequence header, so every copy is listed in Locations.
type Request struct {
	Input     string
	Locations []Location
	Old       level.Level
	New       level.Level
	Tier      level.Tier
}

// Apply performs req according to mode. In report mode the transition is
// only planned. File mode writes the patched copy atomically.
func Apply(req Request, mode Mode, log logrus.FieldLogger) (Transition, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(req.Locations) == 0 {
		return Transition{}, errs.New(errs.InvalidArguments, "apply patch", "no sequence header to patch")
	}
	first := req.Locations[0]
	t, err := Plan(first, req.Old, req.New, req.Tier)
	if err != nil || mode.Kind == ModeReport {
		return t, err
	}

	log = log.WithFields(logrus.Fields{
		"offset": first.ByteOffset(),
		"level":  req.New.Index(),
		"mask":   uint16(0xf800) >> first.Shift(),
		"copies": len(req.Locations),
	})

	switch mode.Kind {
	case ModeInPlace:
		log.Debugf("patching %s in place", req.Input)
		return patchPath(req)
	case ModeFile:
		if mode.Path == "" {
			return t, errs.New(errs.InvalidArguments, "apply patch", "output path is empty")
		}
		log.Debugf("writing patched copy of %s to %s", req.Input, mode.Path)
		return patchCopy(req, mode.Path)
	}
	return t, errs.Newf(errs.InvalidArguments, "apply patch", "unknown output mode %d", mode.Kind)
}

// patchAll rewrites every listed sequence header. The transition of the
// first one is returned, with DroppedBit set if any copy lost a bit.
func patchAll(rw ReadWriterAt, req Request) (Transition, error) {
	var out Transition
	for i, loc := range req.Locations {
		t, err := Patch(rw, loc, req.Old, req.New)
		if err != nil {
			return t, errors.Wrapf(err, "sequence header %d", i)
		}
		if i == 0 {
			out = t
		}
		out.DroppedBit = out.DroppedBit || t.DroppedBit
	}
	return out, nil
}

func patchPath(req Request) (Transition, error) {
	f, err := os.OpenFile(req.Input, os.O_RDWR, 0)
	if err != nil {
		return Transition{}, errors.Wrap(err, "open for patching")
	}
	t, err := patchAll(f, req)
	if err != nil {
		f.Close()
		return t, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return t, errors.Wrap(err, "sync patched file")
	}
	return t, errors.Wrap(f.Close(), "close patched file")
}

// patchCopy patches an overlay of the input and streams it to dest. The
// input is never written and dest only appears once complete.
func patchCopy(req Request, dest string) (Transition, error) {
	src, err := os.Open(req.Input)
	if err != nil {
		return Transition{}, errors.Wrap(err, "open input")
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return Transition{}, errors.Wrap(err, "stat input")
	}

	ov := &overlay{src: src}
	t, err := patchAll(ov, req)
	if err != nil {
		return t, err
	}
	if err := atomic.WriteFile(dest, io.NewSectionReader(ov, 0, info.Size())); err != nil {
		return t, errors.Wrap(err, "write output")
	}
	return t, errors.Wrap(os.Chmod(dest, info.Mode().Perm()), "chmod output")
}
