// Package config loads jobwatch settings from the environment and an optional
// config file.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/jonathan/jobwatch/internal/failure"
	"github.com/jonathan/jobwatch/internal/schedule"
)

// Config is the full set of jobwatch settings. Every key can be set from the
// environment by upper-casing it and replacing dots with underscores, so
// portal.url is PORTAL_URL.
type Config struct {
	Portal   PortalConfig   `mapstructure:"portal"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// PortalConfig locates the portal and the page elements the scraper uses.
// URL and credentials are checked when logging in, not on load.
type PortalConfig struct {
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	UsernameField      string `mapstructure:"username_field" validate:"required"`
	PasswordField      string `mapstructure:"password_field" validate:"required"`
	DashboardID        string `mapstructure:"dashboard_id" validate:"required"`
	TableID            string `mapstructure:"table_id" validate:"required"`
	EmptyStateSelector string `mapstructure:"empty_state_selector" validate:"required"`
	EmptyStateText     string `mapstructure:"empty_state_text"`
	AcceptButton       string `mapstructure:"accept_button" validate:"required"`
	ConfirmSelector    string `mapstructure:"confirm_selector"`
	ResultSelector     string `mapstructure:"result_selector" validate:"required"`
	AcceptedText       string `mapstructure:"accepted_text" validate:"required"`
	UnavailableText    string `mapstructure:"unavailable_text" validate:"required"`

	LoginTimeout  time.Duration `mapstructure:"login_timeout" validate:"gt=0"`
	ScrapeTimeout time.Duration `mapstructure:"scrape_timeout" validate:"gt=0"`
}

// NotifyConfig configures Pushover delivery.
type NotifyConfig struct {
	PushoverToken  string        `mapstructure:"pushover_token"`
	APIURL         string        `mapstructure:"api_url" validate:"required,url"`
	Title          string        `mapstructure:"title"`
	Admins         []string      `mapstructure:"admins"`
	Users          []string      `mapstructure:"users"`
	RatePerSecond  float64       `mapstructure:"rate_per_second" validate:"gte=0"`
	Burst          int           `mapstructure:"burst" validate:"gte=1"`
	Concurrency    int           `mapstructure:"concurrency" validate:"gte=1"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	StillAvailable bool          `mapstructure:"still_available"`
}

// BrowserConfig configures the Chrome process.
type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"`
	ExecPath   string        `mapstructure:"exec_path"`
	ProfileDir string        `mapstructure:"profile_dir"`
	UserAgent  string        `mapstructure:"user_agent"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// ScheduleConfig is the polling schedule. An empty bucket list means the
// built-in table.
type ScheduleConfig struct {
	Timezone string            `mapstructure:"timezone" validate:"required"`
	Buckets  []schedule.Bucket `mapstructure:"buckets" validate:"dive"`
}

// WatchConfig controls the polling loop and auto-accept.
type WatchConfig struct {
	IterationsPerSession int      `mapstructure:"iterations_per_session" validate:"gte=1"`
	AutoAccept           bool     `mapstructure:"auto_accept"`
	BlockSameDay         bool     `mapstructure:"block_same_day"`
	DenyDates            []string `mapstructure:"deny_dates"`
	DenyKeywords         []string `mapstructure:"deny_keywords"`
	DateField            int      `mapstructure:"date_field" validate:"gte=0"`
	DateLayout           string   `mapstructure:"date_layout" validate:"required"`

	OpAttempts      int           `mapstructure:"op_attempts" validate:"gte=1"`
	OpDelay         time.Duration `mapstructure:"op_delay" validate:"gte=0"`
	SessionAttempts int           `mapstructure:"session_attempts" validate:"gte=1"`
	SessionDelay    time.Duration `mapstructure:"session_delay" validate:"gte=0"`
}

// Load reads settings from defaults, then the file at path if path is set,
// then the environment. Errors are FatalConfig.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindLegacyEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, failure.NewFatalConfig("load_config", "failed to read config file %s: %v", path, err)
		}
	}

	return LoadWithViper(v)
}

// LoadWithViper decodes and validates settings from an already prepared
// viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, failure.NewFatalConfig("load_config", "failed to decode config: %v", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize trims list entries, which arrive from the environment as
// comma-separated strings.
func (c *Config) normalize() {
	c.Notify.Admins = cleanList(c.Notify.Admins)
	c.Notify.Users = cleanList(c.Notify.Users)
	c.Watch.DenyDates = cleanList(c.Watch.DenyDates)
	c.Watch.DenyKeywords = cleanList(c.Watch.DenyKeywords)
	if len(c.Schedule.Buckets) == 0 {
		c.Schedule.Buckets = schedule.DefaultBuckets()
	}
}

func cleanList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks field ranges, that the timezone exists and that the
// schedule covers every hour exactly once.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return failure.NewFatalConfig("load_config", "invalid config: %v", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := schedule.CheckCoverage(c.Schedule.Buckets); err != nil {
		return failure.NewFatalConfig("load_config", "invalid schedule: %v", err)
	}
	return nil
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, failure.NewFatalConfig("load_config", "unknown timezone %q: %v", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// RequireNotifier reports a FatalConfig error when live notifications are
// impossible.
func (c *Config) RequireNotifier() error {
	if c.Notify.PushoverToken == "" {
		return failure.NewFatalConfig("load_config", "missing required configuration: NOTIFY_PUSHOVER_TOKEN")
	}
	if len(c.Notify.Admins) == 0 {
		return failure.NewFatalConfig("load_config", "missing required configuration: NOTIFY_ADMINS")
	}
	return nil
}
