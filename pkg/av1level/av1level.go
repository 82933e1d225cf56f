// Package av1level exposes level analysis and patching of AV1 IVF files.
package av1level

import (
	"github.com/autobrr/go-av1level/internal/av1level"
	"github.com/autobrr/go-av1level/internal/level"
	"github.com/autobrr/go-av1level/internal/patch"
)

// Types
type Report = av1level.Report
type AnalyzeOptions = av1level.AnalyzeOptions
type Level = level.Level
type Tier = level.Tier
type SequenceContext = level.SequenceContext
type Mode = patch.Mode
type Transition = patch.Transition

// Constants
const (
	Main = level.Main
	High = level.High
)

// Functions
func AnalyzeFile(path string) (Report, error) {
	return av1level.AnalyzeFile(path)
}

func AnalyzeFileWithOptions(path string, opts AnalyzeOptions) (Report, error) {
	return av1level.AnalyzeFileWithOptions(path, opts)
}

func LookupLevel(index uint8) (Level, bool) {
	return level.Lookup(index)
}

func ParseLevel(value string) (Level, error) {
	return level.ParseIndex(value)
}

func SelectLevel(ctx SequenceContext) Level {
	return level.Select(ctx)
}

// Patching
func ReportOnly() Mode {
	return patch.Report()
}

func InPlace() Mode {
	return patch.InPlace()
}

func ToFile(path string) Mode {
	return patch.File(path)
}

func Apply(report *Report, mode Mode) error {
	return av1level.Apply(report, mode, nil)
}

// Rendering
func RenderText(report Report) string {
	return av1level.RenderText(report)
}

func RenderJSON(report Report) string {
	return av1level.RenderJSON(report)
}

func FormatVersion(version string) string {
	return av1level.FormatVersion(version)
}

func SetAppVersion(version string) {
	av1level.SetAppVersion(version)
}
