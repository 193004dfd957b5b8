package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Strip.Pixels != defaultPixels {
		t.Errorf("Pixels = %d, want %d", cfg.Strip.Pixels, defaultPixels)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if got := again.Schedule.Days["monday"]; got != (Day{ClockIn: 8, ClockOut: 17}) {
		t.Errorf("monday = %+v after round trip", got)
	}
	if got := again.Colors.Bar; got != (RGB{0, 100, 0}) {
		t.Errorf("bar = %v after round trip", got)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
timezone: Europe/Berlin
strip:
  pixels: 60
  reverse: true
colors:
  events:
    - [1, 2, 3]
schedule:
  days:
    Monday: {clockin: 9, clockout: 18.5}
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Timezone != "Europe/Berlin" {
		t.Errorf("Timezone = %q", cfg.Timezone)
	}
	if cfg.Strip.Pixels != 60 || !cfg.Strip.Reverse {
		t.Errorf("strip = %+v", cfg.Strip)
	}
	if len(cfg.Colors.Events) != 1 || cfg.Colors.Events[0] != (RGB{1, 2, 3}) {
		t.Errorf("events = %v", cfg.Colors.Events)
	}
	if !cfg.Calendar.Enabled || !cfg.NTP.Enabled || !cfg.BootAnimation {
		t.Error("boolean defaults were lost")
	}
	if cfg.Calendar.CheckInterval != defaultCheckInterval {
		t.Errorf("CheckInterval = %d", cfg.Calendar.CheckInterval)
	}
	if got := cfg.Schedule.Days["monday"]; got.ClockOut != 18.5 {
		t.Errorf("monday = %+v, keys should be lower-cased", got)
	}
	if _, ok := cfg.Schedule.Days["tuesday"]; ok {
		t.Error("an explicit schedule must replace the default table")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LEDBAR_CALENDAR_API_KEY", "secret")
	t.Setenv("LEDBAR_CALENDAR_ID", "me@example.com")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Calendar.APIKey != "secret" {
		t.Errorf("APIKey = %q", cfg.Calendar.APIKey)
	}
	if cfg.Calendar.ID != "me@example.com" {
		t.Errorf("ID = %q", cfg.Calendar.ID)
	}
	if cfg.Calendar.ICSURL != "" {
		t.Errorf("ICSURL = %q, want untouched", cfg.Calendar.ICSURL)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Calendar.ID = "cal"
		c.Calendar.APIKey = "key"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults with credentials", func(c *Config) {}, false},
		{"calendar disabled needs no credentials", func(c *Config) {
			c.Calendar.Enabled = false
			c.Calendar.APIKey = ""
		}, false},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"missing api key", func(c *Config) { c.Calendar.APIKey = "" }, true},
		{"ics without url", func(c *Config) { c.Calendar.Provider = "ics" }, true},
		{"ics with url", func(c *Config) {
			c.Calendar.Provider = "ics"
			c.Calendar.ICSURL = "https://example.com/a.ics"
		}, false},
		{"unknown provider", func(c *Config) { c.Calendar.Provider = "outlook" }, true},
		{"unknown weekday", func(c *Config) { c.Schedule.Days["funday"] = Day{} }, true},
		{"hour out of range", func(c *Config) { c.Schedule.Days["monday"] = Day{ClockIn: 8, ClockOut: 25} }, true},
		{"bad cron", func(c *Config) { c.NTP.Resync = "every day" }, true},
		{"no palette", func(c *Config) { c.Colors.Events = nil }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
