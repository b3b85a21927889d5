// Package notify delivers operator messages to named audiences. Delivery is
// best effort: per-recipient failures are logged and never returned.
package notify

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Audience names a group of recipients.
type Audience string

const (
	// Admins receive operational alerts (failures, shutdowns).
	Admins Audience = "admins"
	// Users receive job alerts. Admins are always included.
	Users Audience = "users"
)

// Attachment is an optional binary payload sent with a message.
type Attachment struct {
	Name string
	Data []byte
}

// Transport sends one message to one recipient.
type Transport interface {
	Deliver(ctx context.Context, recipient, message string, attachment *Attachment) error
}

// Directory resolves audiences to recipient identifiers.
type Directory struct {
	Admins []string
	Users  []string
}

// Recipients returns the deduplicated recipients of audience. Empty
// identifiers are skipped.
func (d Directory) Recipients(audience Audience) []string {
	var lists [][]string
	switch audience {
	case Admins:
		lists = [][]string{d.Admins}
	case Users:
		lists = [][]string{d.Admins, d.Users}
	}

	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, r := range list {
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// Options tunes delivery pacing.
type Options struct {
	// RatePerSecond caps deliveries across all recipients. Zero disables pacing.
	RatePerSecond float64
	Burst         int
	// Concurrency bounds in-flight deliveries per Notify call.
	Concurrency int
}

// DefaultOptions returns conservative pacing suitable for push providers.
func DefaultOptions() Options {
	return Options{RatePerSecond: 2, Burst: 2, Concurrency: 2}
}

// Notifier fans a message out to every recipient of an audience.
type Notifier struct {
	transport   Transport
	directory   Directory
	limiter     *rate.Limiter
	concurrency int
	logger      *zap.SugaredLogger
}

// New creates a Notifier.
func New(transport Transport, directory Directory, opts Options, logger *zap.SugaredLogger) *Notifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		burst := max(opts.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return &Notifier{
		transport:   transport,
		directory:   directory,
		limiter:     limiter,
		concurrency: max(opts.Concurrency, 1),
		logger:      logger,
	}
}

// Notify sends message to every recipient of audience. If attachmentPath is
// set, the file is read once, sent to every recipient, and removed afterwards
// whether or not delivery succeeded. Notify never returns an error.
func (n *Notifier) Notify(ctx context.Context, audience Audience, message string, attachmentPath string) {
	n.logger.Infow("Sending notification", "audience", string(audience), "message", message)

	attachment := n.loadAttachment(attachmentPath)
	if attachmentPath != "" {
		defer n.removeAttachment(attachmentPath)
	}

	recipients := n.directory.Recipients(audience)
	if len(recipients) == 0 {
		n.logger.Warnw("No recipients configured", "audience", string(audience))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.concurrency)
	for _, recipient := range recipients {
		g.Go(func() error {
			if err := n.limiter.Wait(gctx); err != nil {
				n.logger.Warnw("Notification skipped", "recipient", recipient, "error", err)
				return nil
			}
			if err := n.transport.Deliver(gctx, recipient, message, attachment); err != nil {
				n.logger.Warnw("Failed to send notification", "recipient", recipient, "error", err)
				return nil
			}
			n.logger.Infow("Sent notification", "recipient", recipient)
			return nil
		})
	}
	_ = g.Wait()
}

func (n *Notifier) loadAttachment(path string) *Attachment {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		n.logger.Warnw("Failed to open attachment, sending text only", "path", path, "error", err)
		return nil
	}
	return &Attachment{Name: filepath.Base(path), Data: data}
}

func (n *Notifier) removeAttachment(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		n.logger.Warnw("Failed to remove attachment", "path", path, "error", err)
	}
}

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct {
	Logger *zap.SugaredLogger
}

// Deliver logs the message.
func (t LogTransport) Deliver(_ context.Context, recipient, message string, attachment *Attachment) error {
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	fields := []any{"recipient", recipient, "message", message}
	if attachment != nil {
		fields = append(fields, "attachment", attachment.Name, "attachment_bytes", len(attachment.Data))
	}
	logger.Infow("Dry run notification", fields...)
	return nil
}
