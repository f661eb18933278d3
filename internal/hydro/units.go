package hydro

const (
	// 1/43560 truncated to nine digits, about 1.6e-9 relative below the exact
	// value, so CFS to TAF and back only round-trips to that precision.
	acreFeetPerCubicFoot = 2.29568411e-5
	secondsPerDay        = 86400
	cubicFeetPerAcreFoot = 43560
)

// CFSToTAF converts a flow rate in cubic feet per second to a daily volume in thousand acre-feet.
func CFSToTAF(q float64) float64 {
	return q * acreFeetPerCubicFoot * secondsPerDay / 1000
}

// TAFToCFS converts a daily volume in thousand acre-feet back to cubic feet per second.
func TAFToCFS(q float64) float64 {
	return q * 1000 / secondsPerDay * cubicFeetPerAcreFoot
}
