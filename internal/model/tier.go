package model

type tierBand struct {
	min  int
	name string
}

// tiers is ordered by descending lower bound. 41-60 shares its label with 81-90.
var tiers = []tierBand{
	{96, "Aura God"},
	{91, "Amrit Sir"},
	{81, "Aura Farmer"},
	{61, "Occasional Legend"},
	{41, "Aura Farmer"},
	{21, "Upcoming Sage"},
	{0, "Noob"},
}

// TierFor maps an aura score to its tier label. Out-of-range scores are clamped to [0,100].
func TierFor(score int) string {
	score = ClampInt(score, 0, 100)
	for _, t := range tiers {
		if score >= t.min {
			return t.name
		}
	}
	return tiers[len(tiers)-1].name
}

// ClampInt bounds v to [lo,hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp bounds v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
