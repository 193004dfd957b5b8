package ics

import (
	"context"
	"sort"
	"time"

	appLog "ledbar/internal/log"
	"ledbar/internal/model"
)

// Calendar is a calendar source backed by an ICS subscription URL.
type Calendar struct {
	fetcher *Fetcher
	url     string
	loc     *time.Location
}

// NewCalendar returns an ICS-backed source for the local days of loc.
func NewCalendar(fetcher *Fetcher, url string, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{fetcher: fetcher, url: url, loc: loc}
}

// Today fetches the feed and returns the timed occurrences overlapping the
// local day containing day, ordered by start.
func (c *Calendar) Today(ctx context.Context, day time.Time) ([]model.Interval, error) {
	feed, err := c.fetcher.Fetch(ctx, c.url)
	if err != nil {
		return nil, err
	}
	events, err := Parse(feed.Body)
	if err != nil {
		return nil, err
	}

	y, m, d := day.In(c.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, c.loc)
	end := time.Date(y, m, d+1, 0, 0, 0, 0, c.loc)

	ivs, err := ExpandDay(events, start, end)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })

	appLog.Debug("ics calendar parsed", "url", redactURL(c.url), "vevents", len(events), "today", len(ivs), "from_cache", feed.FromCache)
	return ivs, nil
}
