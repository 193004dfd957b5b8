// Package events holds today's meeting intervals between calendar
// refreshes.
package events

import (
	"sort"
	"time"

	"ledbar/internal/model"
)

// Store is the current day's ordered interval list. It is replaced wholesale
// on each refresh and never patched in place.
type Store struct {
	day       time.Time
	intervals []model.Interval
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a new list for day. The input is copied and ordered by
// start; overlapping intervals are kept as they are.
func (s *Store) Replace(day time.Time, ivs []model.Interval) {
	next := make([]model.Interval, len(ivs))
	copy(next, ivs)
	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Start.Before(next[j].Start)
	})
	s.day = day
	s.intervals = next
}

// Day returns the local day the current list was fetched for.
func (s *Store) Day() time.Time {
	return s.day
}

// Len returns the number of intervals.
func (s *Store) Len() int {
	return len(s.intervals)
}

// All returns a copy of the intervals in store order.
func (s *Store) All() []model.Interval {
	out := make([]model.Interval, len(s.intervals))
	copy(out, s.intervals)
	return out
}

// Each calls fn for every interval in store order.
func (s *Store) Each(fn func(i int, iv model.Interval)) {
	for i, iv := range s.intervals {
		fn(i, iv)
	}
}

// Boundaries returns every start and end instant, in the order start(0),
// end(0), start(1), end(1), ...
func (s *Store) Boundaries() []time.Time {
	out := make([]time.Time, 0, 2*len(s.intervals))
	for _, iv := range s.intervals {
		out = append(out, iv.Start, iv.End)
	}
	return out
}
