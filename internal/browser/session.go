// Package browser owns the headless Chrome session used to drive the portal.
// At most one session is live at a time; creating a new one always tears the
// previous one down first.
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/jobwatch/internal/failure"
)

// DefaultTimeout bounds a single browser operation.
const DefaultTimeout = 30 * time.Second

// aliveTimeout bounds the liveness check.
const aliveTimeout = 5 * time.Second

// hideWebdriver runs before any page script on every navigation.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// ErrNoSession is returned when an operation runs against a handle that is not live.
var ErrNoSession = errors.New("browser session is not active")

// Options configures the Chrome process.
type Options struct {
	Headless   bool
	ExecPath   string // empty lets chromedp find Chrome
	ProfileDir string // empty uses DefaultProfileDir()
	Timeout    time.Duration
	UserAgent  string
}

// DefaultProfileDir returns a profile directory unique to this process, so
// concurrent runs never share browser state.
func DefaultProfileDir() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("jobwatch-chrome-%d", os.Getpid()))
}

// DefaultOptions returns headless defaults.
func DefaultOptions() Options {
	return Options{
		Headless:   true,
		ProfileDir: DefaultProfileDir(),
		Timeout:    DefaultTimeout,
	}
}

// Handle is a live browser tab. Live handles are only obtained from
// Manager.Create and must not be used after Manager.Destroy.
type Handle struct {
	id            string
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	timeout       time.Duration
}

// NewHandle returns a handle that is not attached to a browser. Running
// actions on it fails with ErrNoSession. It stands in for a live session
// where only the handle's identity matters.
func NewHandle(id string) *Handle {
	return &Handle{id: id}
}

// ID identifies the handle in logs.
func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

// Run executes actions against the tab with the default operation timeout.
func (h *Handle) Run(actions ...chromedp.Action) error {
	if h == nil {
		return ErrNoSession
	}
	return h.RunTimeout(h.timeout, actions...)
}

// RunTimeout executes actions against the tab, giving up after timeout.
func (h *Handle) RunTimeout(timeout time.Duration, actions ...chromedp.Action) error {
	if h == nil || h.ctx == nil {
		return ErrNoSession
	}
	ctx, cancel := context.WithTimeout(h.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// Manager creates, checks and destroys the single browser session.
type Manager struct {
	opts   Options
	logger *zap.SugaredLogger
	handle *Handle
}

// NewManager creates a Manager. No browser is started until Create.
func NewManager(opts Options, logger *zap.SugaredLogger) *Manager {
	if opts.ProfileDir == "" {
		opts.ProfileDir = DefaultProfileDir()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{opts: opts, logger: logger}
}

// ProfileDir returns the isolated Chrome profile location.
func (m *Manager) ProfileDir() string {
	return m.opts.ProfileDir
}

// Current returns the live handle, or nil.
func (m *Manager) Current() *Handle {
	return m.handle
}

func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.UserDataDir(m.opts.ProfileDir),
	)
	if m.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.opts.ExecPath))
	}
	if m.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.opts.UserAgent))
	}
	return opts
}

// Create destroys any existing session and starts a fresh one. Start-up
// failures are Recoverable.
func (m *Manager) Create(ctx context.Context) (*Handle, error) {
	m.Destroy()

	if err := os.MkdirAll(m.opts.ProfileDir, 0o700); err != nil {
		return nil, failure.NewRecoverable("create_session", err, "failed to create profile dir %s", m.opts.ProfileDir)
	}

	// The browser outlives the caller's deadline; it is torn down by Destroy.
	base := context.WithoutCancel(ctx)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(base, m.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	h := &Handle{
		id:            uuid.NewString(),
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		timeout:       m.opts.Timeout,
	}

	// The first Run allocates Chrome under its context, so it must carry no
	// deadline. Only the start-up action itself is bounded.
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	}))
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		_ = os.RemoveAll(m.opts.ProfileDir)
		return nil, failure.NewRecoverable("create_session", err, "failed to start browser")
	}

	m.handle = h
	m.logger.Infow("Browser session created", "session_id", h.id, "profile_dir", m.opts.ProfileDir)
	return h, nil
}

// IsAlive checks the session. Any error means not alive.
func (m *Manager) IsAlive(_ context.Context, h *Handle) bool {
	if h == nil || h != m.handle {
		return false
	}
	var location string
	if err := h.RunTimeout(aliveTimeout, chromedp.Location(&location)); err != nil {
		m.logger.Debugw("Browser liveness check failed", "session_id", h.id, "error", err)
		return false
	}
	return true
}

// Refresh reloads the current page.
func (m *Manager) Refresh(_ context.Context) error {
	if m.handle == nil {
		return failure.NewRecoverable("refresh", ErrNoSession, "nothing to refresh")
	}
	if err := m.handle.Run(chromedp.Reload()); err != nil {
		return failure.NewRecoverable("refresh", err, "failed to reload page")
	}
	m.logger.Infow("Browser page refreshed", "session_id", m.handle.id)
	return nil
}

// Screenshot saves the current page to a temporary PNG and returns its path.
// The caller owns the file.
func (m *Manager) Screenshot(_ context.Context) (string, error) {
	if m.handle == nil {
		return "", ErrNoSession
	}
	var buf []byte
	if err := m.handle.Run(chromedp.FullScreenshot(&buf, 90)); err != nil {
		return "", errors.Wrap(err, "failed to capture screenshot")
	}

	f, err := os.CreateTemp("", "jobwatch-*.png")
	if err != nil {
		return "", errors.Wrap(err, "failed to create screenshot file")
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(buf); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "failed to write screenshot")
	}
	return f.Name(), nil
}

// Destroy closes the browser and removes the profile directory. It never
// fails; teardown errors are logged.
func (m *Manager) Destroy() {
	h := m.handle
	m.handle = nil

	if h != nil {
		if err := chromedp.Cancel(h.ctx); err != nil {
			m.logger.Warnw("Error closing browser", "session_id", h.id, "error", err)
		}
		h.cancelBrowser()
		h.cancelAlloc()
		h.ctx = nil
		m.logger.Infow("Browser session destroyed", "session_id", h.id)
	}

	if err := os.RemoveAll(m.opts.ProfileDir); err != nil {
		m.logger.Warnw("Failed to remove profile dir", "path", m.opts.ProfileDir, "error", err)
	}
}
