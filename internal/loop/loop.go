// Package loop drives the strip: one tick per second, each tick refreshing
// the calendar when due, composing the frame and firing meeting alerts.
package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"ledbar/internal/alert"
	"ledbar/internal/calendar"
	"ledbar/internal/clock"
	"ledbar/internal/events"
	appLog "ledbar/internal/log"
	"ledbar/internal/model"
	"ledbar/internal/pixel"
	"ledbar/internal/render"
	"ledbar/internal/schedule"
	"ledbar/internal/strip"
	"ledbar/internal/supervise"
)

const heartbeatEvery = 10

// State is the coarse lifecycle of the loop.
type State int

const (
	Disconnected State = iota
	SyncingTime
	Running
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case SyncingTime:
		return "syncing-time"
	case Running:
		return "running"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Deps are the collaborators the loop drives. Status, Restarter and Dialer
// may be nil.
type Deps struct {
	Clock      *clock.Clock
	Table      *schedule.Table
	Store      *events.Store
	Compositor *render.Compositor
	Effects    *render.Effects
	Source     calendar.Source
	Device     strip.Device
	Status     strip.Indicator
	Restarter  supervise.Restarter
	Dialer     supervise.Dialer
}

// Options are the static settings taken from config.
type Options struct {
	CheckInterval    int
	CalendarEnabled  bool
	DeriveFromEvents bool
	AlertColor       model.Color
	BootAnimation    bool

	// SyncTime enables the NTP sync at boot. Resync, when non-nil, schedules
	// later resyncs.
	SyncTime bool
	Resync   cron.Schedule

	// Probe is dialed before anything else; "" skips the network wait.
	Probe         string
	ProbeAttempts int
	ProbePause    time.Duration
}

// Loop owns all mutable render state. It is not safe for concurrent use.
type Loop struct {
	d    Deps
	opts Options

	state      State
	trigger    alert.Trigger
	refresh    int
	ticks      int
	nextResync time.Time

	// sleep waits for d or ctx; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// New wires a loop.
func New(d Deps, opts Options) *Loop {
	if d.Status == nil {
		d.Status = strip.NopIndicator{}
	}
	if d.Restarter == nil {
		d.Restarter = supervise.ProcessRestarter{}
	}
	if d.Store == nil {
		d.Store = events.NewStore()
	}
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 1
	}
	if opts.ProbePause <= 0 {
		opts.ProbePause = time.Second
	}
	return &Loop{d: d, opts: opts, sleep: sleepCtx}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return l.state
}

func (l *Loop) setState(s State) {
	if l.state == s {
		return
	}
	appLog.Info("state change", "from", l.state, "to", s)
	l.state = s
}

// Run boots the strip and then ticks once per second until ctx is done.
// Boot failures and tick faults are handed to the Restarter. Run returns nil
// on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Boot(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		l.d.Restarter.Restart("boot", err)
		return err
	}

	for {
		if err := l.sleep(ctx, untilNextSecond(l.d.Clock.Now())); err != nil {
			return nil
		}
		if err := l.safeTick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.d.Restarter.Restart("tick", err)
			return err
		}
	}
}

// Boot waits for the network, plays the boot animation and syncs the clock.
func (l *Loop) Boot(ctx context.Context) error {
	l.state = Disconnected
	appLog.Info("booting", "state", l.state)
	if l.opts.Probe != "" {
		if err := supervise.WaitNetwork(ctx, l.d.Dialer, l.opts.Probe, l.opts.ProbeAttempts, l.opts.ProbePause); err != nil {
			return err
		}
	}

	if l.opts.BootAnimation {
		if err := l.d.Effects.Rainbow(ctx, l.d.Device, 1); err != nil {
			return fmt.Errorf("loop: boot animation: %w", err)
		}
		if err := l.d.Device.Write(l.d.Compositor.Blank()); err != nil {
			return fmt.Errorf("loop: clear after boot: %w", err)
		}
	}

	l.setState(SyncingTime)
	if l.opts.SyncTime {
		if err := l.d.Clock.Sync(ctx); err != nil {
			return err
		}
	}
	l.scheduleResync()
	l.setState(Running)
	return nil
}

func (l *Loop) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loop: tick panicked: %v", r)
		}
	}()
	return l.Tick(ctx)
}

// Tick renders one frame.
func (l *Loop) Tick(ctx context.Context) error {
	r := l.d.Clock.Read()
	if l.opts.CalendarEnabled && (l.refresh == 0 || !l.d.Store.Day().Equal(r.Day)) {
		l.refreshEvents(ctx, r)
		r = l.d.Clock.Read()
	}

	hourOf := l.hourOf(r.Day)
	w := l.window(r.Weekday, hourOf)

	if w.Contains(r.Hour) {
		frame := l.d.Compositor.Compose(render.Input{
			Hour:   r.Hour,
			Second: r.Second,
			Window: w,
			Events: render.Spans(l.d.Store.All(), hourOf),
		})
		if err := l.checkAlert(ctx, r.Hour, hourOf); err != nil {
			return err
		}
		if err := l.d.Device.Write(frame); err != nil {
			return fmt.Errorf("loop: write frame: %w", err)
		}
	} else {
		if err := l.d.Device.Write(l.d.Compositor.Blank()); err != nil {
			return fmt.Errorf("loop: write blank frame: %w", err)
		}
	}

	l.refresh = (l.refresh + 1) % l.opts.CheckInterval
	l.ticks++
	if l.ticks%heartbeatEvery == 0 {
		appLog.Info("heartbeat",
			"time", r.Now.Format("15:04"),
			"progress", fmt.Sprintf("%.2f/%.2f", r.Hour, w.ClockOut),
			"events", l.d.Store.Len(),
			"last_sync", formatSync(l.d.Clock.LastSync()))
	}

	l.maybeResync(ctx, r.Now)
	return nil
}

func (l *Loop) hourOf(day time.Time) func(time.Time) float64 {
	loc := l.d.Clock.Location()
	return func(t time.Time) float64 {
		return clock.HourOn(day, t, loc)
	}
}

func (l *Loop) window(wd time.Weekday, hourOf func(time.Time) float64) schedule.Window {
	if l.opts.DeriveFromEvents && l.d.Store.Len() > 0 {
		if w, ok := schedule.FromIntervals(l.d.Store.All(), hourOf); ok {
			return w
		}
	}
	return l.d.Table.For(wd)
}

// refreshEvents replaces the store with the intervals of r's day. It runs
// every CheckInterval ticks and also on the first tick of a new local day.
func (l *Loop) refreshEvents(ctx context.Context, r clock.Reading) {
	l.d.Status.Set(true)
	ivs, err := l.d.Source.Today(ctx, r.Day)
	l.d.Status.Set(false)
	if err != nil {
		// calendar.Safe never returns one; a bare Source might.
		appLog.Error("calendar refresh failed", err)
		ivs = nil
	}
	l.d.Store.Replace(r.Day, ivs)

	hourOf := l.hourOf(r.Day)
	w := l.window(r.Weekday, hourOf)
	n := l.d.Compositor.Len()
	l.d.Store.Each(func(i int, iv model.Interval) {
		start, end, ok := pixel.Range(hourOf(iv.Start), hourOf(iv.End), w, n)
		appLog.Debug("event mapped",
			"index", i,
			"summary", iv.Summary,
			"start", iv.Start.In(r.Now.Location()).Format("15:04"),
			"end", iv.End.In(r.Now.Location()).Format("15:04"),
			"pixels", fmt.Sprintf("[%d,%d)", start, end),
			"visible", ok)
	})
}

func (l *Loop) checkAlert(ctx context.Context, hour float64, hourOf func(time.Time) float64) error {
	bounds := l.d.Store.Boundaries()
	if len(bounds) == 0 {
		return nil
	}
	hours := make([]float64, len(bounds))
	for i, b := range bounds {
		hours[i] = hourOf(b)
	}
	at, fired := l.trigger.Check(hour, hours)
	if !fired {
		return nil
	}
	appLog.Info("meeting alert", "boundary", fmt.Sprintf("%.4f", at), "hour", fmt.Sprintf("%.4f", hour))
	if err := l.d.Effects.Pulse(ctx, l.d.Device, l.opts.AlertColor); err != nil {
		return fmt.Errorf("loop: alert pulse: %w", err)
	}
	return nil
}

func (l *Loop) scheduleResync() {
	if l.opts.Resync == nil || !l.opts.SyncTime {
		return
	}
	l.nextResync = l.opts.Resync.Next(l.d.Clock.Now())
	appLog.Debug("next time resync", "at", l.nextResync.Format(time.RFC3339))
}

func (l *Loop) maybeResync(ctx context.Context, now time.Time) {
	if l.nextResync.IsZero() || now.Before(l.nextResync) {
		return
	}
	if err := l.d.Clock.Sync(ctx); err != nil {
		appLog.Error("time resync failed, keeping previous offset", err, "offset", l.d.Clock.Offset())
	}
	l.scheduleResync()
}

func formatSync(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func untilNextSecond(now time.Time) time.Duration {
	return time.Second - time.Duration(now.Nanosecond())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
