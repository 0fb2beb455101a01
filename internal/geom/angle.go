package geom

import "math"

const TwoPi = 2 * math.Pi

// NormAngle wraps an angle into [0, 2π).
func NormAngle(a float64) float64 {
	a = math.Mod(a, TwoPi)
	if a < 0 {
		a += TwoPi
	}
	return a
}

// InArc reports whether angle a lies inside the closed arc [start, end],
// travelling counter-clockwise from start to end. All angles are wrapped
// into [0, 2π) first, so arcs crossing the 0/2π seam work. Both endpoints
// are inside the arc.
func InArc(a, start, end float64) bool {
	a = NormAngle(a)
	start = NormAngle(start)
	end = NormAngle(end)
	if start <= end {
		return a >= start && a <= end
	}
	return a >= start || a <= end
}

// ArcWidth returns the counter-clockwise width of the arc from start to end
// in [0, 2π).
func ArcWidth(start, end float64) float64 {
	return NormAngle(end - start)
}
