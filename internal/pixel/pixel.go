// Package pixel maps decimal hours onto LED indices along a work window.
package pixel

import (
	"math"

	"ledbar/internal/schedule"
)

// HourToIndex maps hour linearly onto [0, n) across the window:
//
//	floor(n * (hour - ClockIn) / (ClockOut - ClockIn))
//
// The result is not clamped: hours before clock-in give negative indices and
// hours at or after clock-out give indices >= n. ok is false for an inactive
// window, in which case nothing should be drawn.
func HourToIndex(hour float64, w schedule.Window, n int) (idx int, ok bool) {
	if !w.Active() {
		return -1, false
	}
	return int(math.Floor(float64(n) * (hour - w.ClockIn) / (w.ClockOut - w.ClockIn))), true
}

// Range maps [startHour, endHour) to a half-open pixel range clamped to
// [0, n]. ok is false when the clamped range is empty, which is how events
// outside the window drop out of the frame.
func Range(startHour, endHour float64, w schedule.Window, n int) (start, end int, ok bool) {
	ps, ok := HourToIndex(startHour, w, n)
	if !ok {
		return 0, 0, false
	}
	pe, _ := HourToIndex(endHour, w, n)

	start = max(0, ps)
	end = min(n, pe)
	if start >= end {
		return 0, 0, false
	}
	return start, end, true
}

// Clamp limits idx to [0, n].
func Clamp(idx, n int) int {
	return min(max(idx, 0), n)
}
