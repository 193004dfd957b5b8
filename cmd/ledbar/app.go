package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"ledbar/internal/calendar"
	"ledbar/internal/clock"
	"ledbar/internal/config"
	"ledbar/internal/events"
	"ledbar/internal/ics"
	appLog "ledbar/internal/log"
	"ledbar/internal/loop"
	"ledbar/internal/model"
	"ledbar/internal/render"
	"ledbar/internal/schedule"
	"ledbar/internal/strip"
	"ledbar/internal/supervise"
)

// app holds everything built from config so main can tear it down.
type app struct {
	device strip.Device
	loop   *loop.Loop
}

func newApp(ctx context.Context, conf *config.Config, flags flagConfig) (*app, error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", conf.Timezone, err)
	}

	source, err := newSource(ctx, conf, loc)
	if err != nil {
		return nil, err
	}

	device, status, err := newDevice(conf, flags.renderOnly)
	if err != nil {
		return nil, err
	}

	var resync cron.Schedule
	if conf.NTP.Enabled && conf.NTP.Resync != "" {
		resync, err = cron.ParseStandard(conf.NTP.Resync)
		if err != nil {
			_ = device.Close()
			return nil, fmt.Errorf("parse ntp resync %q: %w", conf.NTP.Resync, err)
		}
	}

	palette := make([]model.Color, len(conf.Colors.Events))
	for i, c := range conf.Colors.Events {
		palette[i] = c.Color()
	}
	comp := render.NewCompositor(conf.Strip.Pixels, conf.Colors.Bar.Color(), palette, conf.Strip.Reverse)

	restarter := supervise.ProcessRestarter{
		Before: func() {
			if err := device.Write(comp.Blank()); err != nil {
				appLog.Error("failed to blank strip before restart", err)
			}
			_ = device.Close()
			appLog.Sync()
		},
	}

	l := loop.New(loop.Deps{
		Clock:      clock.New(loc, conf.NTP.Servers, clock.NTPSyncer{}),
		Table:      schedule.NewTable(conf.Schedule.Days),
		Store:      events.NewStore(),
		Compositor: comp,
		Effects:    render.NewEffects(conf.Strip.Pixels),
		Source:     source,
		Device:     device,
		Status:     status,
		Restarter:  restarter,
	}, loop.Options{
		CheckInterval:    conf.Calendar.CheckInterval,
		CalendarEnabled:  conf.Calendar.Enabled,
		DeriveFromEvents: conf.Schedule.DeriveFromEvents,
		AlertColor:       conf.Colors.Alert.Color(),
		BootAnimation:    conf.BootAnimation,
		SyncTime:         conf.NTP.Enabled,
		Resync:           resync,
		Probe:            conf.Network.Probe,
		ProbeAttempts:    conf.Network.Attempts,
		ProbePause:       time.Second,
	})

	return &app{device: device, loop: l}, nil
}

// newSource returns the configured calendar wrapped so that fetch failures
// become empty days. A disabled calendar yields nil; the loop never calls it.
func newSource(ctx context.Context, conf *config.Config, loc *time.Location) (calendar.Source, error) {
	if !conf.Calendar.Enabled {
		return nil, nil
	}
	switch conf.Calendar.Provider {
	case "ics":
		fetcher := ics.NewFetcher(conf.Calendar.CacheDir, &http.Client{Timeout: calendar.FetchTimeout})
		return calendar.Safe{Source: ics.NewCalendar(fetcher, conf.Calendar.ICSURL, loc), Name: "ics"}, nil
	default:
		g, err := calendar.NewGoogle(ctx, conf.Calendar.ID, conf.Calendar.APIKey, loc)
		if err != nil {
			return nil, fmt.Errorf("google calendar client: %w", err)
		}
		return calendar.Safe{Source: g, Name: "google"}, nil
	}
}

func newDevice(conf *config.Config, renderOnly bool) (strip.Device, strip.Indicator, error) {
	if renderOnly {
		return strip.NewLogDevice(conf.Strip.Pixels), strip.NopIndicator{}, nil
	}

	dev, err := strip.NewSPI(strip.SPIOptions{
		Port:       conf.Strip.SPIPort,
		Pixels:     conf.Strip.Pixels,
		FreqKHz:    conf.Strip.FreqKHz,
		Brightness: conf.Strip.Brightness,
	})
	if err != nil {
		return nil, nil, err
	}

	var status strip.Indicator = strip.NopIndicator{}
	if conf.Strip.StatusLED != "" {
		led, err := strip.NewGPIOIndicator(conf.Strip.StatusLED)
		if err != nil {
			// The status LED is cosmetic; run without it.
			appLog.Error("status led unavailable", err, "pin", conf.Strip.StatusLED)
		} else {
			status = led
		}
	}
	return dev, status, nil
}

func (a *app) close() {
	if err := a.device.Close(); err != nil {
		appLog.Error("failed to close strip", err)
	}
}
