package schedule

import (
	"strings"
	"time"

	"ledbar/internal/config"
	"ledbar/internal/model"
)

// Window is a work window in decimal local hours.
type Window struct {
	ClockIn  float64
	ClockOut float64
}

// Active reports whether the window spans any time at all. Days configured
// as 0/0 (or with clock-out before clock-in) are inactive.
func (w Window) Active() bool {
	return w.ClockOut > w.ClockIn
}

// Contains reports whether hour lies in [ClockIn, ClockOut) of an active
// window.
func (w Window) Contains(hour float64) bool {
	return w.Active() && hour >= w.ClockIn && hour < w.ClockOut
}

// Table is the static weekly lookup.
type Table struct {
	days [7]Window
}

// NewTable builds a table from the configured weekday map. Missing days are
// inactive.
func NewTable(days map[string]config.Day) *Table {
	t := &Table{}
	for i, name := range config.Weekdays {
		if d, ok := days[strings.ToLower(name)]; ok {
			t.days[i] = Window{ClockIn: d.ClockIn, ClockOut: d.ClockOut}
		}
	}
	return t
}

// For returns the window configured for wd.
func (t *Table) For(wd time.Weekday) Window {
	if wd < time.Sunday || wd > time.Saturday {
		return Window{}
	}
	return t.days[wd]
}

// FromIntervals derives a window spanning today's meetings: clock-in at the
// earliest start, clock-out at the latest end. hourOf converts an instant to
// the day's decimal hour. Returns false when there is nothing to span.
func FromIntervals(ivs []model.Interval, hourOf func(time.Time) float64) (Window, bool) {
	if len(ivs) == 0 {
		return Window{}, false
	}
	w := Window{ClockIn: hourOf(ivs[0].Start), ClockOut: hourOf(ivs[0].End)}
	for _, iv := range ivs[1:] {
		if s := hourOf(iv.Start); s < w.ClockIn {
			w.ClockIn = s
		}
		if e := hourOf(iv.End); e > w.ClockOut {
			w.ClockOut = e
		}
	}
	if w.ClockIn < 0 {
		w.ClockIn = 0
	}
	if w.ClockOut > 24 {
		w.ClockOut = 24
	}
	return w, w.Active()
}
