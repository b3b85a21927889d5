package watcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/jobwatch/internal/posting"
)

// DefaultDateLayout is how the portal prints job dates.
const DefaultDateLayout = "1/2/2006"

// FilterOptions controls which new postings may be auto-accepted.
type FilterOptions struct {
	BlockSameDay bool
	DenyDates    []string // in DateLayout
	DenyKeywords []string // case-insensitive substrings of the posting text
	DateField    int      // index of the date column
	DateLayout   string
	Location     *time.Location
}

// Decision is the filter's verdict on one posting.
type Decision struct {
	Eligible bool
	Reason   string
}

// Filter decides auto-accept eligibility. It holds no state between calls.
type Filter struct {
	opts      FilterOptions
	denyDates []time.Time
	denyRaw   []string
}

// NewFilter parses the deny-list dates once. Dates that do not parse with
// DateLayout are compared as plain text.
func NewFilter(opts FilterOptions) *Filter {
	if opts.DateLayout == "" {
		opts.DateLayout = DefaultDateLayout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	f := &Filter{opts: opts}
	for _, raw := range opts.DenyDates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if d, err := time.ParseInLocation(opts.DateLayout, raw, opts.Location); err == nil {
			f.denyDates = append(f.denyDates, d)
		} else {
			f.denyRaw = append(f.denyRaw, raw)
		}
	}
	return f
}

// Evaluate checks, in order, the same-day rule, the date deny-list and the
// keyword deny-list. The first rule that rejects wins.
func (f *Filter) Evaluate(job posting.Posting, now time.Time) Decision {
	dateText := job.Field(f.opts.DateField)
	if dateText == "" {
		dateText = job.Text()
	}
	jobDate, hasDate := f.parseDate(dateText)

	if f.opts.BlockSameDay {
		today := now.In(f.opts.Location)
		if hasDate && sameDay(jobDate, today) {
			return Decision{Reason: fmt.Sprintf("same-day job (%s)", today.Format(f.opts.DateLayout))}
		}
	}

	for _, d := range f.denyDates {
		if hasDate && sameDay(jobDate, d) {
			return Decision{Reason: fmt.Sprintf("date %s is blocked", d.Format(f.opts.DateLayout))}
		}
	}
	for _, raw := range f.denyRaw {
		if strings.Contains(dateText, raw) {
			return Decision{Reason: fmt.Sprintf("date %s is blocked", raw)}
		}
	}

	text := strings.ToLower(job.Text())
	for _, kw := range f.opts.DenyKeywords {
		kw = strings.TrimSpace(kw)
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			return Decision{Reason: fmt.Sprintf("classification matches blocked keyword %q", kw)}
		}
	}

	return Decision{Eligible: true}
}

// parseDate reads a date from the whole field, or from its first token that
// parses (fields often carry a time or weekday after the date).
func (f *Filter) parseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if d, err := time.ParseInLocation(f.opts.DateLayout, text, f.opts.Location); err == nil {
		return d, true
	}
	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, ",;()")
		if d, err := time.ParseInLocation(f.opts.DateLayout, token, f.opts.Location); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
