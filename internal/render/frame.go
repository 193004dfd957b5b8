// Package render builds LED frames from the current time, the work window
// and today's meetings, and plays the blocking full-strip effects.
package render

import "ledbar/internal/model"

// Frame is one full strip of pixel colors. A Frame is never modified after
// it is built; operations return new frames.
type Frame struct {
	px []model.Color
}

// Off returns an all-off frame of n pixels.
func Off(n int) Frame {
	return Frame{px: make([]model.Color, n)}
}

// Solid returns a frame with every pixel set to c.
func Solid(n int, c model.Color) Frame {
	px := make([]model.Color, n)
	for i := range px {
		px[i] = c
	}
	return Frame{px: px}
}

// FromPixels copies px into a new frame.
func FromPixels(px []model.Color) Frame {
	cp := make([]model.Color, len(px))
	copy(cp, px)
	return Frame{px: cp}
}

// Len returns the pixel count.
func (f Frame) Len() int {
	return len(f.px)
}

// At returns pixel i.
func (f Frame) At(i int) model.Color {
	return f.px[i]
}

// Pixels returns a copy of the pixel slice.
func (f Frame) Pixels() []model.Color {
	cp := make([]model.Color, len(f.px))
	copy(cp, f.px)
	return cp
}

// Reverse returns the frame in the opposite pixel order.
func (f Frame) Reverse() Frame {
	n := len(f.px)
	px := make([]model.Color, n)
	for i, c := range f.px {
		px[n-1-i] = c
	}
	return Frame{px: px}
}

// Equal reports whether both frames have identical pixels.
func (f Frame) Equal(o Frame) bool {
	if len(f.px) != len(o.px) {
		return false
	}
	for i := range f.px {
		if f.px[i] != o.px[i] {
			return false
		}
	}
	return true
}

// IsOff reports whether every pixel is off.
func (f Frame) IsOff() bool {
	for _, c := range f.px {
		if c != model.Off {
			return false
		}
	}
	return true
}
