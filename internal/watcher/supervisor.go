package watcher

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/jonathan/jobwatch/internal/failure"
	"github.com/jonathan/jobwatch/internal/notify"
	"github.com/jonathan/jobwatch/internal/retry"
)

// Supervisor runs sessions back to back until a terminal failure or until
// its context is cancelled.
type Supervisor struct {
	loop   *Loop
	logger *zap.SugaredLogger
}

// NewSupervisor wraps loop.
func NewSupervisor(loop *Loop, logger *zap.SugaredLogger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Supervisor{loop: loop, logger: logger}
}

// Run blocks until ctx is cancelled, returning nil, or until a session
// fails terminally. A terminal failure is reported to the admins with a
// screenshot of the session when one can be taken, and returned.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Infow("Supervisor started")
	for {
		if ctx.Err() != nil {
			s.shutdown()
			return nil
		}

		_, err := retry.Do(ctx, s.sessionPolicy(), "session", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.loop.RunSession(ctx)
		})
		if err == nil {
			continue
		}

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			s.shutdown()
			return nil
		}

		s.fail(ctx, err)
		return err
	}
}

func (s *Supervisor) sessionPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: s.loop.opts.SessionRetry.MaxAttempts,
		Delay:       s.loop.opts.SessionRetry.Delay,
		Recovery: func(_ context.Context, attempt int, err error) error {
			s.logger.Warnw("Session failed, starting a new one",
				"attempt", attempt,
				"op", failure.OpOf(err),
				"error", err)
			s.loop.sessions.Destroy()
			s.loop.handle = nil
			return nil
		},
		Sleep:  s.loop.opts.Sleep,
		Logger: s.logger,
	}
}

func (s *Supervisor) fail(ctx context.Context, err error) {
	s.logger.Errorw("Stopping after terminal failure",
		"kind", failure.KindOf(err).String(),
		"op", failure.OpOf(err),
		"error", err)

	shot, serr := s.loop.sessions.Screenshot(ctx)
	if serr != nil {
		s.logger.Warnw("Could not capture screenshot", "error", serr)
		shot = ""
	}
	s.loop.notifier.Notify(ctx, notify.Admins, shutdownMessage(err), shot)
	s.shutdown()
}

func (s *Supervisor) shutdown() {
	s.logger.Infow("Shutting down")
	s.loop.sessions.Destroy()
	s.loop.handle = nil
}
