package hydro

import (
	"fmt"
	"math"
	"sort"
)

// Curve is a piecewise-linear lookup over fixed control points. Inputs outside
// the control range clamp to the nearest endpoint value.
type Curve struct {
	xs []float64
	ys []float64
}

// NewCurve builds a curve. xs must be strictly increasing and the same length as ys.
func NewCurve(xs, ys []float64) (Curve, error) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return Curve{}, fmt.Errorf("curve: %d x points, %d y points", len(xs), len(ys))
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return Curve{}, fmt.Errorf("curve: x points not increasing at %d", i)
		}
	}
	return Curve{
		xs: append([]float64(nil), xs...),
		ys: append([]float64(nil), ys...),
	}, nil
}

func mustCurve(xs, ys []float64) Curve {
	c, err := NewCurve(xs, ys)
	if err != nil {
		panic(err)
	}
	return c
}

// At evaluates the curve at x. NaN propagates.
func (c Curve) At(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	n := len(c.xs)
	if x <= c.xs[0] {
		return c.ys[0]
	}
	if x >= c.xs[n-1] {
		return c.ys[n-1]
	}
	i := sort.SearchFloat64s(c.xs, x)
	if c.xs[i] == x {
		return c.ys[i]
	}
	x0, x1 := c.xs[i-1], c.xs[i]
	y0, y1 := c.ys[i-1], c.ys[i]
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

// Release capacity by storage (TAF -> cfs), from the USBR flood-control hydrology memo.
var maxReleaseCurve = mustCurve(
	[]float64{0, 100, 400, 600, 1000},
	[]float64{
		CFSToTAF(0),
		CFSToTAF(35000),
		CFSToTAF(40000),
		CFSToTAF(115000),
		CFSToTAF(115000),
	},
)

// Top of conservation storage (TAF) by water-year day, simplified from the HEC curve.
var tocsCurve = mustCurve(
	[]float64{0, 50, 151, 200, 243, 366},
	[]float64{975, 400, 400, 750, 975, 975},
)

// MaxRelease returns the maximum allowable release in TAF/day for a storage in TAF.
func MaxRelease(storage float64) float64 {
	return maxReleaseCurve.At(storage)
}

// TOCS returns the flood-control target storage in TAF for a water-year day.
func TOCS(waterDay int) float64 {
	return tocsCurve.At(float64(waterDay))
}
