// Package calendar retrieves today's meeting intervals from a remote
// calendar.
package calendar

import (
	"context"
	"sort"
	"time"

	appLog "ledbar/internal/log"
	"ledbar/internal/model"
)

// FetchTimeout bounds a single refresh so a hung request cannot stall the
// render loop for longer than this.
const FetchTimeout = 10 * time.Second

// Source returns the intervals overlapping the local day that starts at
// day (local midnight). Cancelled and all-day events are excluded.
type Source interface {
	Today(ctx context.Context, day time.Time) ([]model.Interval, error)
}

// Safe wraps a Source so that any failure is logged and reported as an
// empty day. A refresh never propagates a fault into the render loop.
type Safe struct {
	Source Source
	Name   string
}

// Today implements Source and never returns an error.
func (s Safe) Today(ctx context.Context, day time.Time) ([]model.Interval, error) {
	ctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	ivs, err := s.Source.Today(ctx, day)
	if err != nil {
		appLog.Error("calendar fetch failed", err, "source", s.Name, "date", day.Format(time.DateOnly))
		return []model.Interval{}, nil
	}
	appLog.Info("calendar sync complete", "source", s.Name, "date", day.Format(time.DateOnly), "events", len(ivs))
	return ivs, nil
}

// sortByStart orders intervals by start, then end.
func sortByStart(ivs []model.Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		if !ivs[i].Start.Equal(ivs[j].Start) {
			return ivs[i].Start.Before(ivs[j].Start)
		}
		return ivs[i].End.Before(ivs[j].End)
	})
}

// dayBounds returns [00:00:00, 23:59:59] of day's local date in loc.
func dayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	end := time.Date(y, m, d, 23, 59, 59, 0, loc)
	return start, end
}
