package render

import (
	"context"
	"fmt"
	"time"

	"ledbar/internal/model"
)

// Writer accepts whole frames. strip.Device satisfies it.
type Writer interface {
	Write(Frame) error
}

const (
	pulseCount     = 5
	pulseStepPct   = 10
	defaultPulseDt = 10 * time.Millisecond
	defaultRainDt  = time.Millisecond
)

// Effects plays blocking full-strip animations. Nothing else is drawn while
// an effect runs.
type Effects struct {
	n int

	// PulseStep is the delay between pulse frames.
	PulseStep time.Duration
	// RainbowStep is the delay between rainbow frames.
	RainbowStep time.Duration
}

// NewEffects returns effects for an n-pixel strip with the default timing.
func NewEffects(n int) *Effects {
	return &Effects{n: n, PulseStep: defaultPulseDt, RainbowStep: defaultRainDt}
}

// PulseFrames returns the frame sequence of the meeting alert: five ramps
// of c from 0 % to 100 % and back in 10 % steps.
func (e *Effects) PulseFrames(c model.Color) []Frame {
	out := make([]Frame, 0, pulseCount*2*(100/pulseStepPct+1))
	for p := 0; p < pulseCount; p++ {
		for pct := 0; pct <= 100; pct += pulseStepPct {
			out = append(out, Solid(e.n, c.Scale(float64(pct)/100)))
		}
		for pct := 100; pct >= 0; pct -= pulseStepPct {
			out = append(out, Solid(e.n, c.Scale(float64(pct)/100)))
		}
	}
	return out
}

// PulseDuration is how long Pulse blocks.
func (e *Effects) PulseDuration() time.Duration {
	return time.Duration(len(e.PulseFrames(model.Off))) * e.PulseStep
}

// Pulse plays the alert pulse on w.
func (e *Effects) Pulse(ctx context.Context, w Writer, c model.Color) error {
	return e.play(ctx, w, e.PulseFrames(c), e.PulseStep)
}

// Rainbow plays cycles full turns of the color wheel across the strip.
func (e *Effects) Rainbow(ctx context.Context, w Writer, cycles int) error {
	frames := make([]Frame, 0, 255*cycles)
	for j := 0; j < 255*cycles; j++ {
		px := make([]model.Color, e.n)
		for i := range px {
			px[i] = wheel(byte((i*256/e.n + j) & 255))
		}
		frames = append(frames, Frame{px: px})
	}
	return e.play(ctx, w, frames, e.RainbowStep)
}

func (e *Effects) play(ctx context.Context, w Writer, frames []Frame, step time.Duration) error {
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Write(f); err != nil {
			return fmt.Errorf("render: effect frame %d: %w", i, err)
		}
		if err := wait(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// wheel maps 0-255 onto a red → green → blue → red color wheel.
func wheel(pos byte) model.Color {
	switch {
	case pos < 85:
		return model.Color{R: pos * 3, G: 255 - pos*3}
	case pos < 170:
		pos -= 85
		return model.Color{R: 255 - pos*3, B: pos * 3}
	default:
		pos -= 170
		return model.Color{G: pos * 3, B: 255 - pos*3}
	}
}
