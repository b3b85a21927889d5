// Package watcher runs the polling bot: one session loop that watches the
// portal for new postings, and the supervisor that restarts it.
package watcher

import (
	"context"
	"time"

	"github.com/jonathan/jobwatch/internal/browser"
	"github.com/jonathan/jobwatch/internal/notify"
	"github.com/jonathan/jobwatch/internal/posting"
)

// Sessions owns the single browser session. It is implemented by
// *browser.Manager.
type Sessions interface {
	Create(ctx context.Context) (*browser.Handle, error)
	IsAlive(ctx context.Context, h *browser.Handle) bool
	Refresh(ctx context.Context) error
	Screenshot(ctx context.Context) (string, error)
	Destroy()
}

// JobSource is the portal as seen through a session. It is implemented by
// *portal.Portal.
type JobSource interface {
	Authenticate(ctx context.Context, h *browser.Handle) error
	IsAuthenticated(ctx context.Context, h *browser.Handle) bool
	ListPostings(ctx context.Context, h *browser.Handle) (posting.Snapshot, error)
	// Accept clicks the posting's accept button. index is the posting's data
	// row on the page, which duplicate rows can push past its set position.
	Accept(ctx context.Context, h *browser.Handle, job posting.Posting, index int) (posting.AcceptOutcome, error)
}

// Notifier delivers messages to an audience. Delivery failures never surface.
type Notifier interface {
	Notify(ctx context.Context, audience notify.Audience, message string, attachmentPath string)
}

// Scheduler decides how long to wait between polls.
type Scheduler interface {
	WaitSeconds(now time.Time) int
}
