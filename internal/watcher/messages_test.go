package watcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobwatch/internal/failure"
	"github.com/jonathan/jobwatch/internal/notify"
	"github.com/jonathan/jobwatch/internal/retry"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestShutdownMessage_LongHistoryKeepsNewestAttempt(t *testing.T) {
	detail := strings.Repeat("element not found; ", 15)
	attempt := 0
	_, err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 8, Sleep: noSleep}, "session",
		func(context.Context) (struct{}, error) {
			attempt++
			return struct{}{}, failure.NewRecoverable("list_postings", nil, "scrape %d failed: %s", attempt, detail)
		})
	require.True(t, failure.IsExhausted(err))

	msg := shutdownMessage(err)
	require.Greater(t, len([]rune(msg)), notify.MaxMessageLength)

	delivered := notify.Truncate(msg, notify.MaxMessageLength)
	assert.True(t, strings.HasPrefix(delivered, "Job bot stopped after repeated failures during session.\n\nLast error: list_postings: scrape 8 failed"))
	assert.Contains(t, delivered, "Attempt 8 failed during session")
	assert.Less(t, strings.Index(delivered, "Attempt 8"), strings.Index(delivered, "Attempt 7"))
	assert.NotContains(t, delivered, "Attempt 1 failed during session")
}

func TestShutdownMessage_NestedExhaustionReportsInnermostError(t *testing.T) {
	inner := failure.NewExhausted("authenticate",
		failure.NewRecoverable("authenticate", nil, "login form did not appear"),
		"failed 3 times:\nAttempt 1 failed\nAttempt 2 failed\nAttempt 3 failed")
	outer := failure.NewExhausted("session", inner, "failed 2 times")
	outer.Attempts = []string{"Attempt 1 failed during session: first", "Attempt 2 failed during session: " + inner.Error()}

	msg := shutdownMessage(outer)
	lines := strings.Split(msg, "\n")

	assert.Equal(t, "Last error: authenticate: login form did not appear", lines[2])
	assert.Equal(t, "Attempts, newest first:", lines[4])
	assert.True(t, strings.HasPrefix(lines[5], "Attempt 2 failed during session: authenticate: failed 3 times: / Attempt 1 failed"))
	assert.Equal(t, "Attempt 1 failed during session: first", lines[6])
	assert.Len(t, lines, 7)
}

func TestShutdownMessage_Kinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "fatal config",
			err:  failure.NewFatalConfig("authenticate", "missing required configuration: PORTAL_PASSWORD"),
			want: "Job bot stopped: configuration error. Fix the setup and restart.\n\nauthenticate: missing required configuration: PORTAL_PASSWORD",
		},
		{
			name: "exhausted without attempts",
			err:  failure.NewExhausted("session", nil, "failed 2 times"),
			want: "Job bot stopped after repeated failures during session.\n\nLast error: session: failed 2 times\n\nsession: failed 2 times",
		},
		{
			name: "unclassified",
			err:  context.DeadlineExceeded,
			want: "Job bot stopped: unexpected error.\n\ncontext deadline exceeded",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, shutdownMessage(tc.err))
		})
	}
}
