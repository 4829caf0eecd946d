// Package colorart implements the subtractive (CMY) color arithmetic used
// to composite threads onto the loom canvas and score the result against a
// target image.
package colorart

// Color is a triplet of 8-bit subtractive components. Higher values mean
// more ink.
type Color struct {
	C, M, Y uint8
}

// ErrorMode selects how WeightedSquaredError combines the three per-component
// differences before weighting. The reference implementation subtracts each
// component with uint8 wraparound (no saturation), sums the wrapped values
// and squares the sum (SumThenSquare); the other two modes resolve the
// ambiguity noted in the design docs for callers that want signed
// per-component squares or the squared sum of absolute differences instead.
type ErrorMode int

const (
	// SumThenSquare reproduces the reference behavior exactly: components are
	// subtracted with uint8 wraparound (no saturation), widened and summed,
	// and only then squared. This is the default and what every documented
	// invariant and scenario is defined against.
	SumThenSquare ErrorMode = iota
	// SumOfSquares squares each signed component difference individually
	// before summing: (Δc² + Δm² + Δy²) · w.
	SumOfSquares
	// AbsThenSquare sums the absolute value of each component difference,
	// then squares the sum: (|Δc| + |Δm| + |Δy|)² · w.
	AbsThenSquare
)

// Mix linearly interpolates between a and b by t in [0,1], truncating each
// component back to uint8.
func Mix(a, b Color, t float64) Color {
	return Color{
		C: mix8(a.C, b.C, t),
		M: mix8(a.M, b.M, t),
		Y: mix8(a.Y, b.Y, t),
	}
}

func mix8(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}

// Sub performs a per-component uint8 subtraction without saturation: the
// result wraps mod 256 exactly as the C source's color_sub does. Only use
// the result where it is immediately widened and squared — see
// WeightedSquaredError's SumThenSquare mode.
func Sub(a, b Color) Color {
	return Color{C: a.C - b.C, M: a.M - b.M, Y: a.Y - b.Y}
}

// ComponentSum widens and sums the three components.
func ComponentSum(c Color) uint64 {
	return uint64(c.C) + uint64(c.M) + uint64(c.Y)
}

// WeightedSquaredError computes the scalar objective term for one pixel:
// a combination of the per-component differences between a and b, squared
// and scaled by weight w. mode selects which combination; see ErrorMode.
func WeightedSquaredError(a, b Color, weight float64, mode ErrorMode) uint64 {
	switch mode {
	case AbsThenSquare:
		d := absDelta(a.C, b.C) + absDelta(a.M, b.M) + absDelta(a.Y, b.Y)
		return uint64(float64(d*d) * weight)
	case SumOfSquares:
		dc := int64(a.C) - int64(b.C)
		dm := int64(a.M) - int64(b.M)
		dy := int64(a.Y) - int64(b.Y)
		sq := dc*dc + dm*dm + dy*dy
		return uint64(float64(sq) * weight)
	default:
		d := ComponentSum(Sub(a, b))
		return uint64(float64(d*d) * weight)
	}
}

func absDelta(a, b uint8) uint64 {
	if a >= b {
		return uint64(a - b)
	}
	return uint64(b - a)
}
