// Package clock turns a UTC time source into the local wall-clock readings
// the renderer works with: decimal hour, weekday and second.
package clock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/ntp"

	appLog "ledbar/internal/log"
)

const (
	defaultQueryTimeout = 5 * time.Second
	defaultRetryPause   = time.Second
)

// Syncer measures the offset between the local system clock and a time
// server.
type Syncer interface {
	Offset(ctx context.Context, server string) (time.Duration, error)
}

// NTPSyncer queries servers over SNTP.
type NTPSyncer struct {
	Timeout time.Duration
}

// Offset implements Syncer.
func (s NTPSyncer) Offset(ctx context.Context, server string) (time.Duration, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Reading is one sample of local wall-clock time.
type Reading struct {
	// Now is the corrected instant in the display location.
	Now time.Time
	// Day is local midnight of Now.
	Day     time.Time
	Hour    float64
	Weekday time.Weekday
	Second  int
}

// Clock is the corrected clock. It is not safe for concurrent use; the
// render loop owns it.
type Clock struct {
	loc     *time.Location
	servers []string
	syncer  Syncer

	// SystemNow is the uncorrected time source. Tests replace it.
	SystemNow func() time.Time
	// RetryPause is slept after each failed server.
	RetryPause time.Duration

	offset   time.Duration
	lastSync time.Time
}

// New constructs a Clock for loc. servers are tried in order by Sync.
func New(loc *time.Location, servers []string, syncer Syncer) *Clock {
	if loc == nil {
		loc = time.Local
	}
	if syncer == nil {
		syncer = NTPSyncer{}
	}
	return &Clock{
		loc:        loc,
		servers:    servers,
		syncer:     syncer,
		SystemNow:  time.Now,
		RetryPause: defaultRetryPause,
	}
}

// Location returns the display location.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Offset returns the correction applied to the system clock.
func (c *Clock) Offset() time.Duration {
	return c.offset
}

// LastSync returns the system time of the last successful Sync, or the
// zero time.
func (c *Clock) LastSync() time.Time {
	return c.lastSync
}

// Now returns the corrected instant in the display location.
func (c *Clock) Now() time.Time {
	return c.SystemNow().Add(c.offset).In(c.loc)
}

// Read samples the clock.
func (c *Clock) Read() Reading {
	now := c.Now()
	return Reading{
		Now:     now,
		Day:     Midnight(now, c.loc),
		Hour:    DecimalHour(now, c.loc),
		Weekday: now.Weekday(),
		Second:  now.Second(),
	}
}

// ErrSyncExhausted is returned when every configured server failed.
var ErrSyncExhausted = errors.New("clock: all time servers failed")

// Sync tries each server in order and adopts the first offset obtained.
func (c *Clock) Sync(ctx context.Context) error {
	if len(c.servers) == 0 {
		return fmt.Errorf("%w: no servers configured", ErrSyncExhausted)
	}
	for _, server := range c.servers {
		if err := ctx.Err(); err != nil {
			return err
		}
		appLog.Info("syncing time", "server", server)
		off, err := c.syncer.Offset(ctx, server)
		if err != nil {
			appLog.Error("time server failed", err, "server", server)
			if err := sleep(ctx, c.RetryPause); err != nil {
				return err
			}
			continue
		}
		c.offset = off
		c.lastSync = c.SystemNow()
		appLog.Info("time synced", "server", server, "offset", off)
		return nil
	}
	return ErrSyncExhausted
}

func sleep(ctx context.Context, d time.Duration) error {
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

// DecimalHour returns the wall-clock time of t in loc as hours in [0, 24).
func DecimalHour(t time.Time, loc *time.Location) float64 {
	lt := t.In(loc)
	return float64(lt.Hour()) + float64(lt.Minute())/60 + float64(lt.Second())/3600 +
		float64(lt.Nanosecond())/3600e9
}

// HourOn returns t as decimal hours relative to the local day containing
// day: the wall-clock hour plus 24 for every civil day t lies after it (or
// minus 24 for every day before). Same-day instants give DecimalHour.
func HourOn(day, t time.Time, loc *time.Location) float64 {
	return float64(dayDiff(day, t, loc))*24 + DecimalHour(t, loc)
}

// Midnight returns 00:00 of t's local date in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// dayDiff counts civil days from day's local date to t's local date.
func dayDiff(day, t time.Time, loc *time.Location) int {
	y0, m0, d0 := day.In(loc).Date()
	y1, m1, d1 := t.In(loc).Date()
	a := time.Date(y0, m0, d0, 0, 0, 0, 0, time.UTC)
	b := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}

// ParseInstant parses an RFC3339 timestamp ("Z" or numeric offset).
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock: parse instant %q: %w", s, err)
	}
	return t, nil
}
