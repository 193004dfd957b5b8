package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"ledbar/internal/model"
)

// NOTE: The configuration is read once at startup and treated as immutable
// afterwards. Secrets may be supplied through LEDBAR_* environment
// variables instead of the file.

// Weekdays lists the schedule keys in time.Weekday order.
var Weekdays = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// RGB is a color written as [r, g, b] in YAML.
type RGB [3]uint8

// Color converts the triple to a model.Color.
func (c RGB) Color() model.Color {
	return model.Color{R: c[0], G: c[1], B: c[2]}
}

// StripConfig describes the physical LED strip.
type StripConfig struct {
	// Pixels is the number of addressable LEDs (N).
	Pixels int `yaml:"pixels" json:"pixels"`
	// SPIPort is the periph.io SPI port name ("" selects the first port,
	// typically /dev/spidev0.0 whose MOSI line is the data pin).
	SPIPort string `yaml:"spi_port" json:"spi_port"`
	// FreqKHz is the NRZ bit rate; WS2812 expects 800.
	FreqKHz int `yaml:"freq_khz" json:"freq_khz"`
	// Brightness scales every channel before transmission (0-255).
	Brightness uint8 `yaml:"brightness" json:"brightness"`
	// Reverse is set when the strip is wired right to left.
	Reverse bool `yaml:"reverse" json:"reverse"`
	// StatusLED is an optional GPIO name (e.g. "GPIO17") lit while the
	// calendar is being fetched.
	StatusLED string `yaml:"status_led,omitempty" json:"status_led,omitempty"`
}

// ColorConfig holds the palette.
type ColorConfig struct {
	Bar    RGB   `yaml:"bar" json:"bar"`
	Events []RGB `yaml:"events" json:"events"`
	Alert  RGB   `yaml:"alert" json:"alert"`
}

// CalendarConfig selects and configures the calendar source.
type CalendarConfig struct {
	// Enabled toggles calendar refreshes entirely.
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Provider is "google" or "ics".
	Provider string `yaml:"provider" json:"provider"`

	// ID / APIKey are used by the google provider.
	ID     string `yaml:"id" json:"id"`
	APIKey string `yaml:"api_key" json:"api_key"`

	// ICSURL / CacheDir are used by the ics provider.
	ICSURL   string `yaml:"ics_url" json:"ics_url"`
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// CheckInterval is the number of 1-second ticks between refreshes.
	CheckInterval int `yaml:"check_interval" json:"check_interval"`
}

// Day is one weekday's work window in decimal hours.
type Day struct {
	ClockIn  float64 `yaml:"clockin" json:"clockin"`
	ClockOut float64 `yaml:"clockout" json:"clockout"`
}

// ScheduleConfig is the weekly work-window table.
type ScheduleConfig struct {
	Days map[string]Day `yaml:"days" json:"days"`
	// DeriveFromEvents replaces the table entry with [first meeting start,
	// last meeting end) whenever today has meetings.
	DeriveFromEvents bool `yaml:"derive_from_events" json:"derive_from_events"`
}

// NTPConfig controls wall-clock synchronization.
type NTPConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Servers []string `yaml:"servers" json:"servers"`
	// Resync is a standard 5-field cron expression for periodic resyncs.
	Resync string `yaml:"resync" json:"resync"`
}

// NetworkConfig controls the startup connectivity probe.
type NetworkConfig struct {
	// Probe is a host:port dialed to decide the network is up.
	Probe    string `yaml:"probe" json:"probe"`
	Attempts int    `yaml:"attempts" json:"attempts"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone used for all wall-clock math
	// (e.g. "America/Los_Angeles").
	Timezone string `yaml:"timezone" json:"timezone"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BootAnimation plays one rainbow cycle at startup.
	BootAnimation bool `yaml:"boot_animation" json:"boot_animation"`

	Strip    StripConfig    `yaml:"strip" json:"strip"`
	Colors   ColorConfig    `yaml:"colors" json:"colors"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	NTP      NTPConfig      `yaml:"ntp" json:"ntp"`
	Network  NetworkConfig  `yaml:"network" json:"network"`
}

const (
	defaultTimezone      = "America/Los_Angeles"
	defaultPixels        = 144
	defaultFreqKHz       = 800
	defaultCheckInterval = 300
	defaultProbe         = "www.googleapis.com:443"
	defaultAttempts      = 10
	defaultResync        = "17 */6 * * *"
)

func defaultServers() []string {
	return []string{"time.google.com", "time.cloudflare.com", "pool.ntp.org"}
}

func defaultDays() map[string]Day {
	days := make(map[string]Day, len(Weekdays))
	for _, name := range Weekdays {
		days[name] = Day{ClockIn: 8, ClockOut: 17}
	}
	days["saturday"] = Day{}
	days["sunday"] = Day{}
	return days
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:      defaultTimezone,
		LogLevel:      "info",
		BootAnimation: true,
		Strip: StripConfig{
			Pixels:     defaultPixels,
			FreqKHz:    defaultFreqKHz,
			Brightness: 255,
		},
		Colors: ColorConfig{
			Bar:    RGB{0, 100, 0},
			Events: []RGB{{255, 255, 0}, {0, 128, 255}},
			Alert:  RGB{255, 255, 0},
		},
		Calendar: CalendarConfig{
			Enabled:       true,
			Provider:      "google",
			CacheDir:      "/var/lib/ledbar/ics-cache",
			CheckInterval: defaultCheckInterval,
		},
		Schedule: ScheduleConfig{
			Days: defaultDays(),
		},
		NTP: NTPConfig{
			Enabled: true,
			Servers: defaultServers(),
			Resync:  defaultResync,
		},
		Network: NetworkConfig{
			Probe:    defaultProbe,
			Attempts: defaultAttempts,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Strip.Pixels <= 0 {
		c.Strip.Pixels = defaultPixels
	}
	if c.Strip.FreqKHz <= 0 {
		c.Strip.FreqKHz = defaultFreqKHz
	}
	if len(c.Colors.Events) == 0 {
		c.Colors.Events = []RGB{{255, 255, 0}, {0, 128, 255}}
	}
	c.Calendar.Provider = strings.ToLower(strings.TrimSpace(c.Calendar.Provider))
	if c.Calendar.Provider == "" {
		c.Calendar.Provider = "google"
	}
	if c.Calendar.CheckInterval <= 0 {
		c.Calendar.CheckInterval = defaultCheckInterval
	}
	if c.Schedule.Days == nil {
		c.Schedule.Days = defaultDays()
	}
	// Lower-case weekday keys so "Monday" and "monday" are the same day.
	days := make(map[string]Day, len(c.Schedule.Days))
	for k, v := range c.Schedule.Days {
		days[strings.ToLower(strings.TrimSpace(k))] = v
	}
	c.Schedule.Days = days
	if len(c.NTP.Servers) == 0 {
		c.NTP.Servers = defaultServers()
	}
	if c.NTP.Resync == "" {
		c.NTP.Resync = defaultResync
	}
	if c.Network.Probe == "" {
		c.Network.Probe = defaultProbe
	}
	if c.Network.Attempts <= 0 {
		c.Network.Attempts = defaultAttempts
	}
}

// Validate reports the first configuration problem that would make the
// program misbehave at runtime.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if c.Strip.Pixels <= 0 {
		return errors.New("config: strip.pixels must be positive")
	}
	if len(c.Colors.Events) == 0 {
		return errors.New("config: colors.events must not be empty")
	}
	for name, d := range c.Schedule.Days {
		if !isWeekday(name) {
			return fmt.Errorf("config: schedule.days: unknown weekday %q", name)
		}
		if d.ClockIn < 0 || d.ClockIn > 24 || d.ClockOut < 0 || d.ClockOut > 24 {
			return fmt.Errorf("config: schedule.days.%s: hours must be within [0, 24]", name)
		}
	}
	if c.Calendar.Enabled {
		switch c.Calendar.Provider {
		case "google":
			if c.Calendar.ID == "" || c.Calendar.APIKey == "" {
				return errors.New("config: calendar.id and calendar.api_key are required for the google provider")
			}
		case "ics":
			if c.Calendar.ICSURL == "" {
				return errors.New("config: calendar.ics_url is required for the ics provider")
			}
		default:
			return fmt.Errorf("config: calendar.provider %q is not one of google, ics", c.Calendar.Provider)
		}
	}
	if c.NTP.Enabled {
		if _, err := cron.ParseStandard(c.NTP.Resync); err != nil {
			return fmt.Errorf("config: ntp.resync: %w", err)
		}
	}
	return nil
}

func isWeekday(name string) bool {
	for _, d := range Weekdays {
		if d == name {
			return true
		}
	}
	return false
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ApplyEnv overrides secrets from LEDBAR_* environment variables:
//
//	LEDBAR_CALENDAR_ID
//	LEDBAR_CALENDAR_API_KEY
//	LEDBAR_ICS_URL
//	LEDBAR_TIMEZONE
func (c *Config) ApplyEnv() {
	v := viper.New()
	v.SetEnvPrefix("LEDBAR")
	v.AutomaticEnv()

	if s := v.GetString("calendar_id"); s != "" {
		c.Calendar.ID = s
	}
	if s := v.GetString("calendar_api_key"); s != "" {
		c.Calendar.APIKey = s
	}
	if s := v.GetString("ics_url"); s != "" {
		c.Calendar.ICSURL = s
	}
	if s := v.GetString("timezone"); s != "" {
		c.Timezone = s
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML on top of the defaults
//   - normalize defaults
//
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	// Decode on top of the defaults so that booleans which default to true
	// stay true unless the file says otherwise.
	cfg := DefaultConfig()
	cfg.Schedule.Days = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".ledbar-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
