package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobwatch/internal/failure"
	"github.com/jonathan/jobwatch/internal/schedule"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "userId", cfg.Portal.UsernameField)
	assert.Equal(t, "userPin", cfg.Portal.PasswordField)
	assert.Equal(t, "parent-table-desktop-available", cfg.Portal.TableID)
	assert.Equal(t, 30*time.Second, cfg.Portal.LoginTimeout)
	assert.Equal(t, schedule.DefaultTimezone, cfg.Schedule.Timezone)
	assert.Equal(t, schedule.DefaultBuckets(), cfg.Schedule.Buckets)
	assert.Equal(t, 10, cfg.Watch.IterationsPerSession)
	assert.True(t, cfg.Watch.BlockSameDay)
	assert.True(t, cfg.Notify.StillAvailable)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORTAL_URL", "https://portal.example.com/login")
	t.Setenv("PORTAL_USERNAME", "jdoe")
	t.Setenv("NOTIFY_ADMINS", "admin-key, ,second-admin")
	t.Setenv("WATCH_DENY_KEYWORDS", "Physical Education,Art")
	t.Setenv("WATCH_OP_DELAY", "2s")
	t.Setenv("WATCH_AUTO_ACCEPT", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.com/login", cfg.Portal.URL)
	assert.Equal(t, "jdoe", cfg.Portal.Username)
	assert.Equal(t, []string{"admin-key", "second-admin"}, cfg.Notify.Admins)
	assert.Equal(t, []string{"Physical Education", "Art"}, cfg.Watch.DenyKeywords)
	assert.Equal(t, 2*time.Second, cfg.Watch.OpDelay)
	assert.False(t, cfg.Watch.AutoAccept)
}

func TestLoad_LegacyEnvironmentNames(t *testing.T) {
	t.Setenv("JOB_TABLE_ID", "legacy-table")
	t.Setenv("USERNAME_FIELD", "legacyUser")
	t.Setenv("PUSHOVER_API_TOKEN", "tok")
	t.Setenv("ADMIN_USER_1", "admin-key")
	t.Setenv("PRODUCTION_USER_1", "user-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "legacy-table", cfg.Portal.TableID)
	assert.Equal(t, "legacyUser", cfg.Portal.UsernameField)
	assert.Equal(t, "tok", cfg.Notify.PushoverToken)
	assert.Equal(t, []string{"admin-key"}, cfg.Notify.Admins)
	assert.Equal(t, []string{"user-key"}, cfg.Notify.Users)
}

func TestLoad_CanonicalNameWins(t *testing.T) {
	t.Setenv("PORTAL_TABLE_ID", "new-table")
	t.Setenv("JOB_TABLE_ID", "legacy-table")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "new-table", cfg.Portal.TableID)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "jobwatch.yaml", `
portal:
  url: https://portal.example.com
watch:
  iterations_per_session: 4
  deny_dates: ["12/24/2026", "12/31/2026"]
schedule:
  timezone: America/New_York
  buckets:
    - name: day
      start_hour: 6
      end_hour: 22
      min_minutes: 5
      max_minutes: 10
    - name: night
      start_hour: 22
      end_hour: 6
      min_minutes: 60
      max_minutes: 120
      carry_over: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.com", cfg.Portal.URL)
	assert.Equal(t, 4, cfg.Watch.IterationsPerSession)
	assert.Equal(t, []string{"12/24/2026", "12/31/2026"}, cfg.Watch.DenyDates)
	require.Len(t, cfg.Schedule.Buckets, 2)
	assert.Equal(t, schedule.Bucket{Name: "night", StartHour: 22, EndHour: 6, MinMinutes: 60, MaxMinutes: 120, CarryOver: true}, cfg.Schedule.Buckets[1])

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		file    string
		wantErr string
	}{
		{
			name:    "missing file",
			file:    "/nonexistent/jobwatch.yaml",
			wantErr: "failed to read config file",
		},
		{
			name:    "unknown timezone",
			env:     map[string]string{"SCHEDULE_TIMEZONE": "Mars/Olympus_Mons"},
			wantErr: "unknown timezone",
		},
		{
			name:    "zero iterations",
			env:     map[string]string{"WATCH_ITERATIONS_PER_SESSION": "0"},
			wantErr: "IterationsPerSession",
		},
		{
			name:    "bad portal url",
			env:     map[string]string{"PORTAL_URL": "not a url"},
			wantErr: "URL",
		},
		{
			name: "schedule gap",
			file: writeFile(t, "gap.yaml", `
schedule:
  buckets:
    - {name: day, start_hour: 6, end_hour: 22, min_minutes: 5, max_minutes: 10}
`),
			wantErr: "invalid schedule",
		},
		{
			name: "inverted bucket range",
			file: writeFile(t, "inverted.yaml", `
schedule:
  buckets:
    - {name: all, start_hour: 0, end_hour: 24, min_minutes: 10, max_minutes: 5}
`),
			wantErr: "MaxMinutes",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(tc.file)
			require.Error(t, err)
			assert.True(t, failure.IsFatal(err))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRequireNotifier(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.RequireNotifier()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOTIFY_PUSHOVER_TOKEN")

	cfg.Notify.PushoverToken = "tok"
	assert.ErrorContains(t, cfg.RequireNotifier(), "NOTIFY_ADMINS")

	cfg.Notify.Admins = []string{"admin-key"}
	assert.NoError(t, cfg.RequireNotifier())
}

func TestConversions(t *testing.T) {
	t.Setenv("PORTAL_URL", "https://portal.example.com")
	t.Setenv("NOTIFY_USERS", "u1,u2")
	t.Setenv("NOTIFY_STILL_AVAILABLE", "false")
	t.Setenv("WATCH_SESSION_ATTEMPTS", "5")

	cfg, err := Load("")
	require.NoError(t, err)
	loc, err := cfg.Location()
	require.NoError(t, err)

	p := cfg.PortalConfig()
	assert.Equal(t, "https://portal.example.com", p.URL)
	assert.Equal(t, "button", p.AcceptButtonSelector)

	b := cfg.BrowserOptions()
	assert.NotEmpty(t, b.ProfileDir)
	assert.True(t, b.Headless)

	assert.Equal(t, []string{"u1", "u2"}, cfg.Directory().Users)

	w := cfg.WatchOptions(loc)
	assert.False(t, w.NotifyStillAvailable)
	assert.Equal(t, 5, w.SessionRetry.MaxAttempts)
	assert.Equal(t, loc, w.Filter.Location)
	assert.Equal(t, "1/2/2006", w.Filter.DateLayout)
}
