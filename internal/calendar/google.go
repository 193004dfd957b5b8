package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"ledbar/internal/clock"
	appLog "ledbar/internal/log"
	"ledbar/internal/model"
)

// Google reads a public (API-key accessible) Google Calendar.
type Google struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

// NewGoogle builds a Google Calendar source. Extra client options (for
// example option.WithEndpoint in tests) are appended after the API key.
func NewGoogle(ctx context.Context, calendarID, apiKey string, loc *time.Location, opts ...option.ClientOption) (*Google, error) {
	if calendarID == "" {
		return nil, errors.New("calendar: google calendar id is empty")
	}
	if apiKey == "" {
		return nil, errors.New("calendar: google api key is empty")
	}
	if loc == nil {
		loc = time.Local
	}
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := gcal.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("calendar: google client: %w", err)
	}
	return &Google{svc: svc, calendarID: calendarID, loc: loc}, nil
}

// Today implements Source.
//
// The query window carries the location's own UTC offset
// (e.g. 2026-01-19T00:00:00-08:00) so Google searches the full local day and
// evening events that are already "tomorrow" in UTC are included.
func (g *Google) Today(ctx context.Context, day time.Time) ([]model.Interval, error) {
	start, end := dayBounds(day, g.loc)

	call := g.svc.Events.List(g.calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		TimeZone(g.loc.String())

	var out []model.Interval
	items := 0
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			items++
			iv, ok, err := intervalFromEvent(item)
			if err != nil {
				appLog.Error("calendar: skipping event", err, "id", item.Id)
				continue
			}
			if ok {
				out = append(out, iv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calendar: google events list: %w", err)
	}

	sortByStart(out)
	appLog.Debug("google calendar fetched", "items", items, "timed", len(out))
	return out, nil
}

// intervalFromEvent converts a timed, non-cancelled event. ok is false for
// events that should be skipped (cancelled, all-day).
func intervalFromEvent(ev *gcal.Event) (model.Interval, bool, error) {
	if ev == nil || ev.Status == "cancelled" {
		return model.Interval{}, false, nil
	}
	if ev.Start == nil || ev.End == nil {
		return model.Interval{}, false, errors.New("event has no start or end")
	}
	// All-day events only carry Date.
	if ev.Start.DateTime == "" || ev.End.DateTime == "" {
		return model.Interval{}, false, nil
	}
	start, err := clock.ParseInstant(ev.Start.DateTime)
	if err != nil {
		return model.Interval{}, false, err
	}
	end, err := clock.ParseInstant(ev.End.DateTime)
	if err != nil {
		return model.Interval{}, false, err
	}
	return model.Interval{Start: start, End: end, Summary: ev.Summary}, true, nil
}
