package watcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/jobwatch/internal/browser"
	"github.com/jonathan/jobwatch/internal/failure"
	"github.com/jonathan/jobwatch/internal/notify"
	"github.com/jonathan/jobwatch/internal/posting"
	"github.com/jonathan/jobwatch/internal/retry"
)

// RetrySettings are the knobs of one retry scope.
type RetrySettings struct {
	MaxAttempts int
	Delay       time.Duration
}

// Options configures the session loop and the supervisor.
type Options struct {
	IterationsPerSession int
	AutoAccept           bool
	NotifyStillAvailable bool
	Filter               FilterOptions

	OpRetry      RetrySettings // around each portal call
	SessionRetry RetrySettings // around a whole session

	Now   func() time.Time // nil means time.Now
	Sleep retry.SleepFunc  // nil means retry.Sleep
}

// DefaultOptions returns the loop settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		IterationsPerSession: 10,
		AutoAccept:           true,
		NotifyStillAvailable: true,
		Filter: FilterOptions{
			BlockSameDay: true,
			DateLayout:   DefaultDateLayout,
		},
		OpRetry:      RetrySettings{MaxAttempts: 3, Delay: 5 * time.Second},
		SessionRetry: RetrySettings{MaxAttempts: 3, Delay: 30 * time.Second},
	}
}

// Loop runs polling sessions. It holds at most one session handle and is not
// safe for concurrent use.
type Loop struct {
	sessions  Sessions
	source    JobSource
	notifier  Notifier
	scheduler Scheduler
	filter    *Filter
	opts      Options
	logger    *zap.SugaredLogger

	handle *browser.Handle
}

// NewLoop wires the loop to its collaborators.
func NewLoop(sessions Sessions, source JobSource, notifier Notifier, scheduler Scheduler, opts Options, logger *zap.SugaredLogger) *Loop {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.IterationsPerSession < 1 {
		opts.IterationsPerSession = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}
	return &Loop{
		sessions:  sessions,
		source:    source,
		notifier:  notifier,
		scheduler: scheduler,
		filter:    NewFilter(opts.Filter),
		opts:      opts,
		logger:    logger,
	}
}

// RunSession acquires a fresh session and polls IterationsPerSession times,
// then destroys the session. On error the session is left in place so the
// caller can capture it before tearing it down.
func (l *Loop) RunSession(ctx context.Context) error {
	if err := l.recreate(ctx); err != nil {
		return err
	}
	l.logger.Infow("Session started", "session_id", l.handle.ID(), "iterations", l.opts.IterationsPerSession)

	// seen is empty at session start, so the first scrape reports everything
	// as new.
	seen := posting.NewSet()
	for i := 1; i <= l.opts.IterationsPerSession; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		current, err := l.iterate(ctx, seen)
		if err != nil {
			return err
		}
		seen = current

		// The session can be recreated mid-iteration, so read the id each time.
		wait := time.Duration(l.scheduler.WaitSeconds(l.opts.Now())) * time.Second
		l.logger.Infow("Iteration complete",
			"session_id", l.handle.ID(),
			"iteration", i,
			"postings", current.Len(),
			"next_check_in", wait.String())
		if err := l.opts.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	l.logger.Infow("Session finished, renewing browser", "session_id", l.handle.ID())
	l.sessions.Destroy()
	l.handle = nil
	return nil
}

// iterate performs one poll and returns the postings seen. seen is only
// replaced by the caller when iterate succeeds.
func (l *Loop) iterate(ctx context.Context, seen posting.Set) (posting.Set, error) {
	if err := l.ensureAuthenticated(ctx); err != nil {
		return posting.Set{}, err
	}

	snap, err := l.listPostings(ctx)
	if err != nil {
		return posting.Set{}, err
	}
	current := snap.Postings

	fresh, still := posting.Diff(seen, current)
	if !fresh.IsEmpty() {
		l.logger.Infow("New postings", "count", fresh.Len())
		l.notifier.Notify(ctx, notify.Users, newPostingsMessage(fresh), "")
		if l.opts.AutoAccept {
			if err := l.autoAccept(ctx, current, fresh); err != nil {
				return posting.Set{}, err
			}
		}
	}
	if !still.IsEmpty() && l.opts.NotifyStillAvailable {
		l.notifier.Notify(ctx, notify.Users, stillAvailableMessage(still), "")
	}
	if current.IsEmpty() {
		l.logger.Infow("No jobs available")
	}
	return current, nil
}

func (l *Loop) opPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: l.opts.OpRetry.MaxAttempts,
		Delay:       l.opts.OpRetry.Delay,
		Recovery:    l.recoverView,
		Sleep:       l.opts.Sleep,
		Logger:      l.logger,
	}
}

// recoverView refreshes the page, or replaces the session if it has died.
func (l *Loop) recoverView(ctx context.Context, _ int, _ error) error {
	if !l.sessions.IsAlive(ctx, l.handle) {
		l.logger.Warnw("Session is not responding, recreating")
		return l.recreate(ctx)
	}
	l.logger.Infow("Refreshing page before retry")
	return l.sessions.Refresh(ctx)
}

// recreate drops the current handle and acquires a new one.
func (l *Loop) recreate(ctx context.Context) error {
	l.handle = nil
	h, err := l.sessions.Create(ctx)
	if err != nil {
		return err
	}
	l.handle = h
	return nil
}

func (l *Loop) ensureAuthenticated(ctx context.Context) error {
	_, err := retry.Do(ctx, l.opPolicy(), "authenticate", func(ctx context.Context) (struct{}, error) {
		if !l.sessions.IsAlive(ctx, l.handle) {
			if err := l.recreate(ctx); err != nil {
				return struct{}{}, err
			}
		}
		if l.source.IsAuthenticated(ctx, l.handle) {
			return struct{}{}, nil
		}
		return struct{}{}, l.source.Authenticate(ctx, l.handle)
	})
	return err
}

func (l *Loop) listPostings(ctx context.Context) (posting.Snapshot, error) {
	return retry.Do(ctx, l.opPolicy(), "list_postings", func(ctx context.Context) (posting.Snapshot, error) {
		snap, err := l.source.ListPostings(ctx, l.handle)
		if err != nil {
			return posting.Snapshot{}, err
		}
		if snap.Postings.IsEmpty() && !snap.EmptyConfirmed {
			return posting.Snapshot{}, failure.NewRecoverable("list_postings", nil, "no postings found and no empty-state message shown")
		}
		return snap, nil
	})
}

// autoAccept tries the first eligible posting in fresh, notifying a skip for
// each ineligible one before it. At most one accept is attempted.
func (l *Loop) autoAccept(ctx context.Context, current, fresh posting.Set) error {
	now := l.opts.Now()
	for _, job := range fresh.Postings() {
		decision := l.filter.Evaluate(job, now)
		if !decision.Eligible {
			l.logger.Infow("Skipping auto-accept", "reason", decision.Reason, "posting", job.Text())
			l.notifier.Notify(ctx, notify.Users, skippedMessage(job, decision.Reason), "")
			continue
		}

		// Duplicate rows above the posting shift its page row past its set
		// position.
		index := job.Row()
		if index < 0 {
			index = current.IndexOf(job)
		}
		outcome, err := retry.Do(ctx, l.opPolicy(), "accept", func(ctx context.Context) (posting.AcceptOutcome, error) {
			return l.source.Accept(ctx, l.handle, job, index)
		})
		if err != nil {
			return err
		}
		l.logger.Infow("Auto-accept finished", "outcome", outcome.String(), "posting", job.Text())
		l.notifier.Notify(ctx, notify.Users, acceptOutcomeMessage(job, outcome), "")
		return nil
	}
	return nil
}
