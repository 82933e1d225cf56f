package av1level

import (
	"fmt"
	"math"
	"strconv"
)

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div := float64(size)
	exp := 0
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	for div >= unit && exp < len(units)-1 {
		div /= unit
		exp++
	}
	return fmt.Sprintf("%.2f %s", div, units[exp])
}

func formatFrameRate(rate, scale uint32) string {
	if scale == 0 {
		scale = 1
	}
	fps := float64(rate) / float64(scale)
	if rate%scale == 0 {
		return fmt.Sprintf("%.3f FPS", fps)
	}
	return fmt.Sprintf("%.3f (%d/%d) FPS", fps, rate, scale)
}

func formatMbps(v float64) string {
	return fmt.Sprintf("%.3f Mb/s", v)
}

func formatRatio(v float64) string {
	if v == math.MaxFloat64 || math.IsInf(v, 0) || math.IsNaN(v) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func profileName(profile uint8) string {
	switch profile {
	case 0:
		return "Main"
	case 1:
		return "High"
	case 2:
		return "Professional"
	}
	return "Reserved (" + strconv.Itoa(int(profile)) + ")"
}
