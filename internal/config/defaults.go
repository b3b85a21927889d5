package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/jonathan/jobwatch/internal/browser"
	"github.com/jonathan/jobwatch/internal/notify"
	"github.com/jonathan/jobwatch/internal/portal"
	"github.com/jonathan/jobwatch/internal/schedule"
	"github.com/jonathan/jobwatch/internal/watcher"
)

// SetDefaults registers a default for every key. Keys without a default are
// invisible to AutomaticEnv when unmarshalling.
func SetDefaults(v *viper.Viper) {
	p := portal.DefaultConfig()
	v.SetDefault("portal.url", "")
	v.SetDefault("portal.username", "")
	v.SetDefault("portal.password", "")
	v.SetDefault("portal.username_field", p.UsernameField)
	v.SetDefault("portal.password_field", p.PasswordField)
	v.SetDefault("portal.dashboard_id", p.DashboardID)
	v.SetDefault("portal.table_id", p.TableID)
	v.SetDefault("portal.empty_state_selector", p.EmptyStateSelector)
	v.SetDefault("portal.empty_state_text", p.EmptyStateText)
	v.SetDefault("portal.accept_button", p.AcceptButtonSelector)
	v.SetDefault("portal.confirm_selector", p.ConfirmSelector)
	v.SetDefault("portal.result_selector", p.ResultSelector)
	v.SetDefault("portal.accepted_text", p.AcceptedText)
	v.SetDefault("portal.unavailable_text", p.UnavailableText)
	v.SetDefault("portal.login_timeout", p.LoginTimeout)
	v.SetDefault("portal.scrape_timeout", p.ScrapeTimeout)

	n := notify.DefaultOptions()
	v.SetDefault("notify.pushover_token", "")
	v.SetDefault("notify.api_url", notify.DefaultPushoverURL)
	v.SetDefault("notify.title", "Job Bot")
	v.SetDefault("notify.admins", []string{})
	v.SetDefault("notify.users", []string{})
	v.SetDefault("notify.rate_per_second", n.RatePerSecond)
	v.SetDefault("notify.burst", n.Burst)
	v.SetDefault("notify.concurrency", n.Concurrency)
	v.SetDefault("notify.timeout", notify.DefaultTimeout)
	v.SetDefault("notify.still_available", true)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.timeout", browser.DefaultTimeout)

	v.SetDefault("schedule.timezone", schedule.DefaultTimezone)

	w := watcher.DefaultOptions()
	v.SetDefault("watch.iterations_per_session", w.IterationsPerSession)
	v.SetDefault("watch.auto_accept", w.AutoAccept)
	v.SetDefault("watch.block_same_day", w.Filter.BlockSameDay)
	v.SetDefault("watch.deny_dates", []string{})
	v.SetDefault("watch.deny_keywords", []string{})
	v.SetDefault("watch.date_field", 0)
	v.SetDefault("watch.date_layout", watcher.DefaultDateLayout)
	v.SetDefault("watch.op_attempts", w.OpRetry.MaxAttempts)
	v.SetDefault("watch.op_delay", w.OpRetry.Delay)
	v.SetDefault("watch.session_attempts", w.SessionRetry.MaxAttempts)
	v.SetDefault("watch.session_delay", w.SessionRetry.Delay)
}

// BindLegacyEnv accepts the environment names used by earlier deployments
// alongside the canonical ones. The canonical name wins when both are set.
func BindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("portal.username_field", "PORTAL_USERNAME_FIELD", "USERNAME_FIELD")
	_ = v.BindEnv("portal.password_field", "PORTAL_PASSWORD_FIELD", "PASSWORD_FIELD")
	_ = v.BindEnv("portal.table_id", "PORTAL_TABLE_ID", "JOB_TABLE_ID")
	_ = v.BindEnv("notify.pushover_token", "NOTIFY_PUSHOVER_TOKEN", "PUSHOVER_API_TOKEN")
	_ = v.BindEnv("notify.admins", "NOTIFY_ADMINS", "ADMIN_USER_1")
	_ = v.BindEnv("notify.users", "NOTIFY_USERS", "PRODUCTION_USER_1")
	_ = v.BindEnv("schedule.timezone", "SCHEDULE_TIMEZONE", "TIMEZONE")
}

// PortalConfig converts to the portal package's settings.
func (c *Config) PortalConfig() portal.Config {
	p := c.Portal
	return portal.Config{
		URL:                  p.URL,
		Username:             p.Username,
		Password:             p.Password,
		UsernameField:        p.UsernameField,
		PasswordField:        p.PasswordField,
		DashboardID:          p.DashboardID,
		TableID:              p.TableID,
		EmptyStateSelector:   p.EmptyStateSelector,
		EmptyStateText:       p.EmptyStateText,
		AcceptButtonSelector: p.AcceptButton,
		ConfirmSelector:      p.ConfirmSelector,
		ResultSelector:       p.ResultSelector,
		AcceptedText:         p.AcceptedText,
		UnavailableText:      p.UnavailableText,
		LoginTimeout:         p.LoginTimeout,
		ScrapeTimeout:        p.ScrapeTimeout,
	}
}

// BrowserOptions converts to the browser package's settings.
func (c *Config) BrowserOptions() browser.Options {
	opts := browser.Options{
		Headless:   c.Browser.Headless,
		ExecPath:   c.Browser.ExecPath,
		ProfileDir: c.Browser.ProfileDir,
		Timeout:    c.Browser.Timeout,
		UserAgent:  c.Browser.UserAgent,
	}
	if opts.ProfileDir == "" {
		opts.ProfileDir = browser.DefaultProfileDir()
	}
	return opts
}

// Directory returns the notification recipients.
func (c *Config) Directory() notify.Directory {
	return notify.Directory{Admins: c.Notify.Admins, Users: c.Notify.Users}
}

// NotifyOptions returns delivery pacing.
func (c *Config) NotifyOptions() notify.Options {
	return notify.Options{
		RatePerSecond: c.Notify.RatePerSecond,
		Burst:         c.Notify.Burst,
		Concurrency:   c.Notify.Concurrency,
	}
}

// WatchOptions returns the loop settings, evaluated in loc.
func (c *Config) WatchOptions(loc *time.Location) watcher.Options {
	w := c.Watch
	return watcher.Options{
		IterationsPerSession: w.IterationsPerSession,
		AutoAccept:           w.AutoAccept,
		NotifyStillAvailable: c.Notify.StillAvailable,
		Filter: watcher.FilterOptions{
			BlockSameDay: w.BlockSameDay,
			DenyDates:    w.DenyDates,
			DenyKeywords: w.DenyKeywords,
			DateField:    w.DateField,
			DateLayout:   w.DateLayout,
			Location:     loc,
		},
		OpRetry:      watcher.RetrySettings{MaxAttempts: w.OpAttempts, Delay: w.OpDelay},
		SessionRetry: watcher.RetrySettings{MaxAttempts: w.SessionAttempts, Delay: w.SessionDelay},
	}
}
