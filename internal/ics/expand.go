package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "ledbar/internal/log"
	"ledbar/internal/model"
)

// maxOccurrencesPerEvent caps a single series inside one day.
const maxOccurrencesPerEvent = 500

// ExpandDay returns the timed occurrences overlapping [dayStart, dayEnd).
// It handles single events, RRULE series with EXDATE, and RECURRENCE-ID
// overrides. An override replaces the occurrence it names wherever that
// occurrence would have fallen and is kept on its own DTSTART/DTEND, so an
// instance moved onto another day shows up there. Cancelled and all-day
// events are dropped.
func ExpandDay(events []VEvent, dayStart, dayEnd time.Time) ([]model.Interval, error) {
	if !dayEnd.After(dayStart) {
		return nil, errors.New("ics: day end is not after day start")
	}

	bases := make(map[string][]VEvent)
	overrides := make(map[string][]VEvent)
	var order []string
	for _, ev := range events {
		if _, seen := bases[ev.UID]; !seen {
			if _, seen := overrides[ev.UID]; !seen {
				order = append(order, ev.UID)
			}
		}
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases[ev.UID] = append(bases[ev.UID], ev)
	}

	var out []model.Interval
	for _, uid := range order {
		replaced := recurrenceIDs(overrides[uid])
		for _, ev := range bases[uid] {
			out = append(out, expandEvent(ev, replaced, dayStart, dayEnd)...)
		}
		for _, ov := range overrides[uid] {
			out = append(out, keep(ov, dayStart, dayEnd)...)
		}
	}
	return out, nil
}

// recurrenceIDs indexes the original starts named by overrides.
func recurrenceIDs(ovs []VEvent) map[int64]bool {
	if len(ovs) == 0 {
		return nil
	}
	ids := make(map[int64]bool, len(ovs))
	for _, ov := range ovs {
		ids[ov.Recurrence.UnixNano()] = true
	}
	return ids
}

func expandEvent(ev VEvent, replaced map[int64]bool, dayStart, dayEnd time.Time) []model.Interval {
	if ev.RawRRule == "" {
		if replaced[ev.Start.UnixNano()] {
			return nil
		}
		return keep(ev, dayStart, dayEnd)
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Look back by one duration so occurrences that started before the day
	// but run into it are found.
	dur := ev.End.Sub(ev.Start)
	from := dayStart.Add(-dur).In(ev.Start.Location())
	to := dayEnd.In(ev.Start.Location())
	starts := set.Between(from, to, true)
	if len(starts) > maxOccurrencesPerEvent {
		appLog.Error("ics: occurrences truncated", errors.New("cap reached"), "uid", ev.UID, "cap", maxOccurrencesPerEvent)
		starts = starts[:maxOccurrencesPerEvent]
	}

	var out []model.Interval
	for _, s := range starts {
		if replaced[s.UnixNano()] {
			continue
		}
		inst := ev
		inst.Start = s
		inst.End = s.Add(dur)
		out = append(out, keep(inst, dayStart, dayEnd)...)
	}
	return out
}

// keep converts ev to an interval if it is timed, not cancelled and
// overlaps the day.
func keep(ev VEvent, dayStart, dayEnd time.Time) []model.Interval {
	if ev.AllDay || ev.Status == "CANCELLED" {
		return nil
	}
	if ev.End.Before(dayStart) || !ev.Start.Before(dayEnd) {
		return nil
	}
	// Zero-length events that end exactly at day start belong to yesterday.
	if ev.End.Equal(dayStart) && ev.End.After(ev.Start) {
		return nil
	}
	return []model.Interval{{Start: ev.Start, End: ev.End, Summary: ev.Summary}}
}
