// Package strip writes frames to the physical LED strip.
package strip

import (
	"fmt"

	appLog "ledbar/internal/log"
	"ledbar/internal/render"
)

// Device latches whole frames onto the strip. Partial writes are not
// meaningful; every Write replaces all pixels.
type Device interface {
	Write(f render.Frame) error
	Close() error
}

// LogDevice is used for render-only runs and development machines without
// an SPI bus. It logs a compact picture of each frame at debug level.
type LogDevice struct {
	n      int
	writes int
	last   render.Frame
}

// NewLogDevice returns a LogDevice for an n-pixel strip.
func NewLogDevice(n int) *LogDevice {
	return &LogDevice{n: n, last: render.Off(n)}
}

// Write implements Device.
func (d *LogDevice) Write(f render.Frame) error {
	if f.Len() != d.n {
		return fmt.Errorf("strip: frame has %d pixels, strip has %d", f.Len(), d.n)
	}
	d.writes++
	if !f.Equal(d.last) {
		appLog.Debug("strip frame", "write", d.writes, "pixels", Sketch(f))
	}
	d.last = f
	return nil
}

// Last returns the most recently written frame.
func (d *LogDevice) Last() render.Frame {
	return d.last
}

// Writes returns how many frames have been written.
func (d *LogDevice) Writes() int {
	return d.writes
}

// Close implements Device.
func (d *LogDevice) Close() error {
	return nil
}

// Sketch renders a frame as one character per pixel: '.' off, '#' white,
// and 'o' for any other color.
func Sketch(f render.Frame) string {
	b := make([]byte, f.Len())
	for i := range b {
		c := f.At(i)
		switch {
		case c.R == 0 && c.G == 0 && c.B == 0:
			b[i] = '.'
		case c.R == 255 && c.G == 255 && c.B == 255:
			b[i] = '#'
		default:
			b[i] = 'o'
		}
	}
	return string(b)
}
