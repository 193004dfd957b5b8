package render

import (
	"time"

	"ledbar/internal/model"
	"ledbar/internal/pixel"
	"ledbar/internal/schedule"
)

// Span is a meeting expressed in the day's decimal hours.
type Span struct {
	Start float64
	End   float64
}

// Spans converts intervals to spans, preserving order.
func Spans(ivs []model.Interval, hourOf func(time.Time) float64) []Span {
	out := make([]Span, len(ivs))
	for i, iv := range ivs {
		out[i] = Span{Start: hourOf(iv.Start), End: hourOf(iv.End)}
	}
	return out
}

// Input is everything a single frame depends on.
type Input struct {
	Hour   float64
	Second int
	Window schedule.Window
	Events []Span
}

// Compositor layers events, the progress bar and the "now" marker into a
// frame. It holds only static configuration, so Compose is a pure function
// of its Input.
type Compositor struct {
	n       int
	bar     model.Color
	palette []model.Color
	reverse bool
}

// NewCompositor returns a compositor for an n-pixel strip. palette must not
// be empty.
func NewCompositor(n int, bar model.Color, palette []model.Color, reverse bool) *Compositor {
	p := make([]model.Color, len(palette))
	copy(p, palette)
	if len(p) == 0 {
		p = []model.Color{model.White}
	}
	return &Compositor{n: n, bar: bar, palette: p, reverse: reverse}
}

// Len returns the strip length.
func (c *Compositor) Len() int {
	return c.n
}

// Blank returns the all-off frame in strip orientation.
func (c *Compositor) Blank() Frame {
	return c.orient(Off(c.n))
}

// Compose builds the frame for one tick. Layers, each overwriting the
// previous per pixel:
//
//  1. all off
//  2. events in order, colored palette[i % len(palette)]
//  3. progress bar over [0, bar_end)
//  4. white tip at bar_end on even seconds
//  5. whole-frame reversal for right-to-left strips
//
// Outside the window (or on an inactive day) only layer 1 applies.
func (c *Compositor) Compose(in Input) Frame {
	px := make([]model.Color, c.n)

	if !in.Window.Contains(in.Hour) {
		return c.orient(Frame{px: px})
	}

	for i, ev := range in.Events {
		start, end, ok := pixel.Range(ev.Start, ev.End, in.Window, c.n)
		if !ok {
			continue
		}
		col := c.palette[i%len(c.palette)]
		for p := start; p < end; p++ {
			px[p] = col
		}
	}

	// Window is active here, so ok is always true.
	idx, _ := pixel.HourToIndex(in.Hour, in.Window, c.n)
	barEnd := pixel.Clamp(idx, c.n)
	for p := 0; p < barEnd; p++ {
		px[p] = c.bar
	}

	if barEnd < c.n && in.Second%2 == 0 {
		px[barEnd] = model.White
	}

	return c.orient(Frame{px: px})
}

func (c *Compositor) orient(f Frame) Frame {
	if c.reverse {
		return f.Reverse()
	}
	return f
}
