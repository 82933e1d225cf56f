package level

import "math"

// minCRFloor is the lowest MinCompressRatio any level may require.
const minCRFloor = 0.8

// MinPicCompressRatio returns, per level, the minimum picture compression
// ratio for the given tier and display rate (shown frames per second).
// Reserved slots are left at zero. still_picture is assumed to be 0.
func MinPicCompressRatio(tier Tier, displayRate float64) [Count]float64 {
	var out [Count]float64
	for i, l := range table {
		lim, ok := l.Limits()
		if !ok {
			continue
		}
		speedAdj := displayRate / float64(lim.MaxDisplayRate)
		basis := lim.HighCR
		if usesMainLimits(tier, uint8(i)) {
			basis = lim.MainCR
		}
		out[i] = math.Max(minCRFloor, float64(basis)*speedAdj)
	}
	return out
}

// MinCRLevel returns the lowest defined level whose minimum compression
// ratio is met by observed. ok is false when no level qualifies.
func MinCRLevel(tier Tier, displayRate, observed float64) (uint8, bool) {
	ratios := MinPicCompressRatio(tier, displayRate)
	for i, l := range table {
		if !l.IsValid() {
			continue
		}
		if observed >= ratios[i] {
			return uint8(i), true
		}
	}
	return 0, false
}
