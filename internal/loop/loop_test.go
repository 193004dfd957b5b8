package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"ledbar/internal/clock"
	"ledbar/internal/config"
	"ledbar/internal/events"
	"ledbar/internal/model"
	"ledbar/internal/render"
	"ledbar/internal/schedule"
)

const pixels = 144

var (
	green  = model.Color{G: 100}
	orange = model.Color{R: 255, G: 80}
	red    = model.Color{R: 255}
)

// 2026-01-19 is a Monday.
func at(h, m, s int) time.Time {
	return time.Date(2026, 1, 19, h, m, s, 0, time.UTC)
}

type fakeSource struct {
	ivs   []model.Interval
	calls int
}

func (f *fakeSource) Today(context.Context, time.Time) ([]model.Interval, error) {
	f.calls++
	return f.ivs, nil
}

type recorder struct {
	frames []render.Frame
	err    error
	onW    func(n int)
}

func (r *recorder) Write(f render.Frame) error {
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, f)
	if r.onW != nil {
		r.onW(len(r.frames))
	}
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) last() render.Frame { return r.frames[len(r.frames)-1] }

type fakeRestarter struct {
	reasons []string
	errs    []error
}

func (f *fakeRestarter) Restart(reason string, err error) {
	f.reasons = append(f.reasons, reason)
	f.errs = append(f.errs, err)
}

type fakeSyncer struct {
	calls int
	fail  bool
}

func (f *fakeSyncer) Offset(context.Context, string) (time.Duration, error) {
	f.calls++
	if f.fail {
		return 0, errors.New("timeout")
	}
	return 0, nil
}

type fixture struct {
	now     time.Time
	clock   *clock.Clock
	source  *fakeSource
	device  *recorder
	restart *fakeRestarter
	syncer  *fakeSyncer
	loop    *Loop
}

func newFixture(t *testing.T, opts Options, ivs ...model.Interval) *fixture {
	t.Helper()
	f := &fixture{
		now:     at(10, 0, 0),
		source:  &fakeSource{ivs: ivs},
		device:  &recorder{},
		restart: &fakeRestarter{},
		syncer:  &fakeSyncer{},
	}
	f.clock = clock.New(time.UTC, []string{"ntp.test"}, f.syncer)
	f.clock.RetryPause = 0
	f.clock.SystemNow = func() time.Time { return f.now }

	effects := render.NewEffects(pixels)
	effects.PulseStep = 0
	effects.RainbowStep = 0

	f.loop = New(Deps{
		Clock:      f.clock,
		Table:      schedule.NewTable(map[string]config.Day{"monday": {ClockIn: 8, ClockOut: 17}}),
		Store:      events.NewStore(),
		Compositor: render.NewCompositor(pixels, green, []model.Color{orange}, false),
		Effects:    effects,
		Source:     f.source,
		Device:     f.device,
		Restarter:  f.restart,
	}, opts)
	f.loop.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return f
}

func meeting(sh, sm, eh, em int) model.Interval {
	return model.Interval{Start: at(sh, sm, 0), End: at(eh, em, 0), Summary: "standup"}
}

func TestTickRefreshCadence(t *testing.T) {
	f := newFixture(t, Options{CheckInterval: 3, CalendarEnabled: true})
	for i := 0; i < 7; i++ {
		if err := f.loop.Tick(context.Background()); err != nil {
			t.Fatalf("Tick() error = %v", err)
		}
		f.now = f.now.Add(time.Second)
	}
	// ticks 0, 3 and 6
	if f.source.calls != 3 {
		t.Errorf("source calls = %d, want 3", f.source.calls)
	}
}

func TestTickRefreshesOnNewDay(t *testing.T) {
	f := newFixture(t, Options{CheckInterval: 300, CalendarEnabled: true})
	f.now = at(23, 59, 59)
	for i := 0; i < 3; i++ {
		if err := f.loop.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
		f.now = f.now.Add(time.Second)
	}
	// 23:59:59 (cadence) and 00:00:00 (new day); 00:00:01 is neither.
	if f.source.calls != 2 {
		t.Errorf("source calls = %d, want 2", f.source.calls)
	}
	if want := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC); !f.loop.d.Store.Day().Equal(want) {
		t.Errorf("store day = %v, want %v", f.loop.d.Store.Day(), want)
	}
}

func TestFormatSync(t *testing.T) {
	if got := formatSync(time.Time{}); got != "never" {
		t.Errorf("formatSync(zero) = %q", got)
	}
	if got := formatSync(at(10, 0, 0)); got != "2026-01-19T10:00:00Z" {
		t.Errorf("formatSync() = %q", got)
	}
}

func TestTickCalendarDisabled(t *testing.T) {
	f := newFixture(t, Options{CheckInterval: 1, CalendarEnabled: false})
	for i := 0; i < 3; i++ {
		if err := f.loop.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if f.source.calls != 0 {
		t.Errorf("source called %d times with calendar disabled", f.source.calls)
	}
}

func TestTickInsideWindow(t *testing.T) {
	// 11:00 on an 8-17 window over 144 pixels: bar_end = 144*3/9 = 48.
	f := newFixture(t, Options{CheckInterval: 300, CalendarEnabled: true}, meeting(14, 0, 15, 0))
	f.now = at(11, 0, 0)
	if err := f.loop.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	fr := f.device.last()
	if fr.At(47) != green || fr.At(48) != model.White || fr.At(49) != model.Off {
		t.Errorf("bar/tip wrong: %v %v %v", fr.At(47), fr.At(48), fr.At(49))
	}
	// 14:00-15:00 -> [96, 112)
	if fr.At(96) != orange || fr.At(111) != orange || fr.At(112) != model.Off {
		t.Errorf("event range wrong: %v %v %v", fr.At(96), fr.At(111), fr.At(112))
	}
}

func TestTickOffWindowBlank(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
	}{
		{"before clock-in", at(7, 59, 59)},
		{"at clock-out", at(17, 0, 0)},
		{"inactive day", time.Date(2026, 1, 24, 12, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Options{CheckInterval: 300, CalendarEnabled: true}, meeting(7, 0, 18, 0))
			f.now = tc.now
			if err := f.loop.Tick(context.Background()); err != nil {
				t.Fatal(err)
			}
			if got := f.device.last(); !got.IsOff() || got.Len() != pixels {
				t.Error("expected an all-off frame")
			}
		})
	}
}

func TestTickDerivedWindow(t *testing.T) {
	opts := Options{CheckInterval: 300, CalendarEnabled: true, DeriveFromEvents: true}
	sat := func(h int) time.Time { return time.Date(2026, 1, 24, h, 0, 0, 0, time.UTC) }
	f := newFixture(t, opts, model.Interval{Start: sat(10), End: sat(12)})
	f.now = sat(11)
	if err := f.loop.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Halfway through a 10-12 window; the meeting fills the rest.
	fr := f.device.last()
	if fr.At(71) != green || fr.At(72) != model.White || fr.At(73) != orange {
		t.Errorf("derived window not applied: %v %v %v", fr.At(71), fr.At(72), fr.At(73))
	}
}

func TestTickAlertPulsesOnce(t *testing.T) {
	opts := Options{CheckInterval: 300, CalendarEnabled: true, AlertColor: red}
	f := newFixture(t, opts, meeting(10, 0, 10, 30))

	pulseFrames := len(render.NewEffects(pixels).PulseFrames(red))

	if err := f.loop.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got, want := len(f.device.frames), pulseFrames+1; got != want {
		t.Fatalf("writes after first tick = %d, want %d", got, want)
	}
	if f.device.frames[pulseFrames/2].IsOff() {
		t.Error("pulse never lit the strip")
	}

	for i := 0; i < 20; i++ {
		f.now = f.now.Add(time.Second)
		if err := f.loop.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := len(f.device.frames), pulseFrames+21; got != want {
		t.Errorf("writes after 21 ticks = %d, want %d (one pulse only)", got, want)
	}
}

func TestTickWriteError(t *testing.T) {
	f := newFixture(t, Options{CheckInterval: 300})
	f.device.err = errors.New("spi gone")
	if err := f.loop.Tick(context.Background()); err == nil {
		t.Fatal("Tick() error = nil, want write error")
	}
}

func TestTickResync(t *testing.T) {
	sched, err := cron.ParseStandard("*/5 * * * *")
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, Options{CheckInterval: 300, SyncTime: true, Resync: sched})
	if err := f.loop.Boot(context.Background()); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if f.syncer.calls != 1 {
		t.Fatalf("boot sync calls = %d", f.syncer.calls)
	}

	f.now = at(10, 4, 59)
	if err := f.loop.Tick(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.syncer.calls != 1 {
		t.Errorf("resynced early")
	}

	f.syncer.fail = true
	f.now = at(10, 5, 0)
	if err := f.loop.Tick(context.Background()); err != nil {
		t.Fatalf("resync failure must not fail the tick: %v", err)
	}
	if f.syncer.calls != 2 {
		t.Errorf("sync calls = %d, want 2", f.syncer.calls)
	}
	if want := at(10, 10, 0); !f.loop.nextResync.Equal(want) {
		t.Errorf("next resync = %v, want %v", f.loop.nextResync, want)
	}
}

func TestBootAnimationAndStates(t *testing.T) {
	f := newFixture(t, Options{CheckInterval: 300, BootAnimation: true, SyncTime: true})
	if f.loop.State() != Disconnected {
		t.Fatalf("initial state = %v", f.loop.State())
	}
	if err := f.loop.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.loop.State() != Running {
		t.Errorf("state = %v, want running", f.loop.State())
	}
	if got := len(f.device.frames); got != 256 {
		t.Errorf("boot writes = %d, want 255 rainbow frames and a blank", got)
	}
	if !f.device.last().IsOff() {
		t.Error("strip not cleared after boot animation")
	}
}

func TestRunBootFailureRestarts(t *testing.T) {
	f := newFixture(t, Options{CheckInterval: 300, SyncTime: true})
	f.syncer.fail = true
	if err := f.loop.Run(context.Background()); !errors.Is(err, clock.ErrSyncExhausted) {
		t.Errorf("Run() error = %v", err)
	}
	if len(f.restart.reasons) != 1 || f.restart.reasons[0] != "boot" {
		t.Errorf("restarts = %v", f.restart.reasons)
	}
	if f.loop.State() != SyncingTime {
		t.Errorf("state = %v, want syncing-time", f.loop.State())
	}
}

func TestRunTickFaultRestarts(t *testing.T) {
	f := newFixture(t, Options{CheckInterval: 300})
	f.device.err = errors.New("spi gone")
	if err := f.loop.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil")
	}
	if len(f.restart.reasons) != 1 || f.restart.reasons[0] != "tick" {
		t.Errorf("restarts = %v", f.restart.reasons)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	f := newFixture(t, Options{CheckInterval: 300, CalendarEnabled: true})
	f.loop.d.Source = nil
	if err := f.loop.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil after panic")
	}
	if len(f.restart.reasons) != 1 {
		t.Errorf("restarts = %v", f.restart.reasons)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t, Options{CheckInterval: 300})
	f.device.onW = func(n int) {
		f.now = f.now.Add(time.Second)
		if n == 3 {
			cancel()
		}
	}
	if err := f.loop.Run(ctx); err != nil {
		t.Errorf("Run() error = %v, want nil on cancel", err)
	}
	if len(f.device.frames) != 3 {
		t.Errorf("frames = %d, want 3", len(f.device.frames))
	}
	if len(f.restart.reasons) != 0 {
		t.Errorf("unexpected restart: %v", f.restart.reasons)
	}
}

func TestUntilNextSecond(t *testing.T) {
	now := time.Date(2026, 1, 19, 10, 0, 0, 250*int(time.Millisecond), time.UTC)
	if got := untilNextSecond(now); got != 750*time.Millisecond {
		t.Errorf("untilNextSecond() = %v", got)
	}
}
