// Package portal drives the job-assignment portal through a browser session:
// logging in, scraping the available-jobs table and accepting a job.
package portal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/jonathan/jobwatch/internal/browser"
	"github.com/jonathan/jobwatch/internal/failure"
	"github.com/jonathan/jobwatch/internal/posting"
)

// Config identifies the portal and the page structures the scraper relies on.
type Config struct {
	URL      string
	Username string
	Password string

	UsernameField string // element id of the username input
	PasswordField string // element id of the password input
	DashboardID   string // element id that appears once logged in
	TableID       string // element id of the available-jobs table

	EmptyStateSelector string
	EmptyStateText     string

	AcceptButtonSelector string // queried inside the job's row
	ConfirmSelector      string // optional confirmation dialog button
	ResultSelector       string
	AcceptedText         string
	UnavailableText      string

	LoginTimeout  time.Duration
	ScrapeTimeout time.Duration
}

// DefaultConfig returns the identifiers used by the portal today.
func DefaultConfig() Config {
	return Config{
		UsernameField:        "userId",
		PasswordField:        "userPin",
		DashboardID:          "job-search-tab",
		TableID:              "parent-table-desktop-available",
		EmptyStateSelector:   "div.pds-message-info",
		EmptyStateText:       "no jobs available",
		AcceptButtonSelector: "button",
		ConfirmSelector:      "#confirm-accept",
		ResultSelector:       "div.pds-message-success, div.pds-message-error",
		AcceptedText:         "accepted",
		UnavailableText:      "no longer available",
		LoginTimeout:         30 * time.Second,
		ScrapeTimeout:        20 * time.Second,
	}
}

// missing lists the required settings that are empty.
func (c Config) missing() []string {
	var out []string
	if c.URL == "" {
		out = append(out, "PORTAL_URL")
	}
	if c.Username == "" {
		out = append(out, "PORTAL_USERNAME")
	}
	if c.Password == "" {
		out = append(out, "PORTAL_PASSWORD")
	}
	return out
}

// Portal implements the job source on top of a browser.Handle.
type Portal struct {
	cfg    Config
	logger *zap.SugaredLogger
}

// New creates a Portal.
func New(cfg Config, logger *zap.SugaredLogger) *Portal {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	defaults := DefaultConfig()
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = defaults.LoginTimeout
	}
	if cfg.ScrapeTimeout <= 0 {
		cfg.ScrapeTimeout = defaults.ScrapeTimeout
	}
	return &Portal{cfg: cfg, logger: logger}
}

func idSelector(id string) string {
	return "#" + id
}

// Authenticate logs in. Missing credentials or URL are FatalConfig; anything
// that looks like the page not being ready is Recoverable.
func (p *Portal) Authenticate(_ context.Context, h *browser.Handle) error {
	if missing := p.cfg.missing(); len(missing) > 0 {
		return failure.NewFatalConfig("authenticate", "missing required configuration: %s", strings.Join(missing, ", "))
	}

	p.logger.Infow("Logging in", "url", p.cfg.URL, "session_id", h.ID())

	err := h.RunTimeout(p.cfg.LoginTimeout,
		chromedp.Navigate(p.cfg.URL),
		chromedp.WaitVisible(idSelector(p.cfg.UsernameField), chromedp.ByQuery),
		chromedp.SendKeys(idSelector(p.cfg.UsernameField), p.cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(idSelector(p.cfg.PasswordField), p.cfg.Password+kb.Enter, chromedp.ByQuery),
	)
	if err != nil {
		return failure.NewRecoverable("authenticate", err, "login form not ready")
	}

	err = h.RunTimeout(p.cfg.LoginTimeout, chromedp.WaitVisible(idSelector(p.cfg.DashboardID), chromedp.ByQuery))
	if err != nil {
		return failure.NewRecoverable("authenticate", err, "dashboard %q did not load after login", p.cfg.DashboardID)
	}

	p.logger.Infow("Logged in", "session_id", h.ID())
	return nil
}

// IsAuthenticated reports whether the dashboard marker is on the page. Lookup
// errors report false.
func (p *Portal) IsAuthenticated(_ context.Context, h *browser.Handle) bool {
	var present bool
	script := fmt.Sprintf("document.getElementById(%s) !== null", strconv.Quote(p.cfg.DashboardID))
	if err := h.RunTimeout(5*time.Second, chromedp.Evaluate(script, &present)); err != nil {
		p.logger.Debugw("Authentication check failed", "error", err)
		return false
	}
	return present
}

// ListPostings scrapes the available-jobs table.
func (p *Portal) ListPostings(_ context.Context, h *browser.Handle) (posting.Snapshot, error) {
	ready := fmt.Sprintf("document.getElementById(%s) !== null || document.querySelector(%s) !== null",
		strconv.Quote(p.cfg.TableID), strconv.Quote(p.cfg.EmptyStateSelector))

	var found bool
	var html string
	err := h.RunTimeout(p.cfg.ScrapeTimeout,
		chromedp.Poll(ready, &found, chromedp.WithPollingTimeout(p.cfg.ScrapeTimeout)),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return posting.Snapshot{}, failure.NewRecoverable("list_postings", err, "job table %q did not appear", p.cfg.TableID)
	}

	snap, err := ParseSnapshot(html, p.cfg)
	if err != nil {
		return posting.Snapshot{}, err
	}

	p.logger.Infow("Scraped job table",
		"postings", snap.Postings.Len(),
		"empty_confirmed", snap.EmptyConfirmed)
	return snap, nil
}

// Accept clicks the accept button on the posting's row, confirms, and reads
// the portal's answer.
func (p *Portal) Accept(_ context.Context, h *browser.Handle, job posting.Posting, index int) (posting.AcceptOutcome, error) {
	p.logger.Infow("Accepting job", "index", index, "posting", job.Text())

	var clicked string
	if err := h.Run(chromedp.Evaluate(acceptScript(p.cfg, job, index), &clicked)); err != nil {
		return 0, failure.NewRecoverable("accept", err, "failed to click accept")
	}
	if clicked != "clicked" {
		return 0, failure.NewRecoverable("accept", nil, "could not click accept for row %d: %s", index, clicked)
	}

	if p.cfg.ConfirmSelector != "" {
		err := h.Run(
			chromedp.WaitVisible(p.cfg.ConfirmSelector, chromedp.ByQuery),
			chromedp.Click(p.cfg.ConfirmSelector, chromedp.ByQuery),
		)
		if err != nil {
			return 0, failure.NewRecoverable("accept", err, "confirmation dialog did not appear")
		}
	}

	var result string
	err := h.Run(
		chromedp.WaitVisible(p.cfg.ResultSelector, chromedp.ByQuery),
		chromedp.Text(p.cfg.ResultSelector, &result, chromedp.ByQuery),
	)
	if err != nil {
		return 0, failure.NewRecoverable("accept", err, "no confirmation message after accepting")
	}

	outcome, err := ClassifyResult(result, p.cfg)
	if err != nil {
		return 0, err
	}
	p.logger.Infow("Accept finished", "outcome", outcome.String())
	return outcome, nil
}

// acceptScript clicks the accept button on the jobs table's data row that
// shows the posting. It tries the index-th data row first and otherwise takes
// the first row whose cells match the posting's canonical text, so duplicate
// or shifted rows cannot redirect the click.
func acceptScript(cfg Config, job posting.Posting, index int) string {
	return fmt.Sprintf(`(() => {
	const table = document.getElementById(%s);
	if (!table) return "table missing";
	const rows = Array.from(table.querySelectorAll("tr")).filter(r => r.querySelector("td"));
	const want = %s;
	const text = r => Array.from(r.querySelectorAll("td"))
		.map(td => td.textContent.trim().split(/\s+/).filter(Boolean).join(" "))
		.join(%s);
	let row = rows[%d];
	if (!row || text(row) !== want) row = rows.find(r => text(r) === want);
	if (!row) return "row missing";
	const button = row.querySelector(%s);
	if (!button) return "button missing";
	button.click();
	return "clicked";
})()`,
		strconv.Quote(cfg.TableID),
		strconv.Quote(job.Text()),
		strconv.Quote(posting.Delimiter),
		index,
		strconv.Quote(cfg.AcceptButtonSelector))
}

// ClassifyResult maps the portal's confirmation text to an outcome.
// Unrecognized text is Recoverable.
func ClassifyResult(text string, cfg Config) (posting.AcceptOutcome, error) {
	lower := strings.ToLower(text)
	switch {
	case cfg.UnavailableText != "" && strings.Contains(lower, strings.ToLower(cfg.UnavailableText)):
		return posting.NoLongerAvailable, nil
	case cfg.AcceptedText != "" && strings.Contains(lower, strings.ToLower(cfg.AcceptedText)):
		return posting.Accepted, nil
	default:
		return 0, failure.NewRecoverable("accept", nil, "unrecognized confirmation message %q", strings.TrimSpace(text))
	}
}
