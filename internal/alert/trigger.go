// Package alert decides when a meeting boundary has been reached.
package alert

import "math"

const (
	// Tolerance is how close (in decimal hours) a tick must be to a boundary
	// to count as "at" it: 30 seconds, wider than the 1 Hz sampling jitter.
	Tolerance = 0.5 / 60
	// Debounce is the minimum spacing between two fires: 1 minute, longer
	// than the pulse and than the span of samples inside one tolerance window.
	Debounce = 1.0 / 60
)

// Trigger fires at most once per boundary. The zero value is armed and has
// never fired.
type Trigger struct {
	lastFired *float64
}

// Candidate returns the first boundary within Tolerance of hour.
func Candidate(hour float64, boundaries []float64) (float64, bool) {
	for _, b := range boundaries {
		if math.Abs(b-hour) < Tolerance {
			return b, true
		}
	}
	return 0, false
}

// Check scans boundaries (decimal hours, in store order) against hour and
// reports whether the alert fires on this tick. A fire records the
// candidate boundary as the last fired hour.
func (t *Trigger) Check(hour float64, boundaries []float64) (at float64, fired bool) {
	cand, ok := Candidate(hour, boundaries)
	if !ok {
		return 0, false
	}
	if t.lastFired != nil && math.Abs(cand-*t.lastFired) <= Debounce {
		return 0, false
	}
	t.lastFired = &cand
	return cand, true
}

// LastFired returns the boundary of the most recent fire.
func (t *Trigger) LastFired() (float64, bool) {
	if t.lastFired == nil {
		return 0, false
	}
	return *t.lastFired, true
}
