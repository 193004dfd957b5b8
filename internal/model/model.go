package model

import "time"

// Color is one pixel value as an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

var (
	Off   = Color{}
	White = Color{R: 255, G: 255, B: 255}
)

// Scale returns c with every channel multiplied by frac (0..1).
func (c Color) Scale(frac float64) Color {
	if frac <= 0 {
		return Off
	}
	if frac >= 1 {
		return c
	}
	return Color{
		R: uint8(float64(c.R) * frac),
		G: uint8(float64(c.G) * frac),
		B: uint8(float64(c.B) * frac),
	}
}

// Interval is a single concrete calendar occurrence for the current day,
// as produced by a calendar source after filtering and expansion.
type Interval struct {
	// Start / End are absolute instants; the display location is applied
	// only when they are converted to decimal hours.
	Start time.Time
	End   time.Time

	// Summary is kept for diagnostics only; rendering never reads it.
	Summary string
}
