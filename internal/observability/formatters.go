// Package observability provides formatted output for the CLI's inspection
// commands.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/jobwatch/internal/notify"
	"github.com/jonathan/jobwatch/internal/posting"
	"github.com/jonathan/jobwatch/internal/schedule"
	"github.com/jonathan/jobwatch/internal/watcher"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxItemsToShow is the default number of postings to display
	maxItemsToShow = 10
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, notify.Truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintSchedule outputs the bucket table, marking the bucket active at now,
// followed by the wait sampled for now.
func (p *Printer) PrintSchedule(s *schedule.Scheduler, now time.Time, wait time.Duration) {
	if s == nil {
		return
	}
	local := now.In(s.Location())
	active := s.BucketFor(now)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Timezone: %s\n", s.Location()))
	sb.WriteString(fmt.Sprintf("Now:      %s\n\n", local.Format("Mon Jan 2 15:04")))

	for _, b := range s.Buckets() {
		marker := " "
		if b.Name == active.Name {
			marker = "▶"
		}
		carry := ""
		if b.CarryOver {
			carry = "  (carry-over)"
		}
		sb.WriteString(fmt.Sprintf("%s %-14s %02d:00-%02d:00  %3d-%3d min%s\n",
			marker, b.Name, b.StartHour, b.EndHour, b.MinMinutes, b.MaxMinutes, carry))
	}

	sb.WriteString(fmt.Sprintf("\nNext check in %s (at %s)",
		wait.Round(time.Second), local.Add(wait).Format("15:04:05")))

	p.printBox("POLLING SCHEDULE", sb.String())
}

// PrintPostings outputs a scraped posting set with each posting's
// auto-accept verdict. A nil filter omits the verdicts.
func (p *Printer) PrintPostings(snap posting.Snapshot, filter *watcher.Filter, now time.Time) {
	if snap.Postings.IsEmpty() {
		status := "No postings found (empty state not confirmed)"
		if snap.EmptyConfirmed {
			status = "No jobs available"
		}
		p.printBox("AVAILABLE JOBS", status)
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d postings:\n\n", snap.Postings.Len()))

	jobs := snap.Postings.Postings()
	count := min(len(jobs), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, jobs[i].Text()))
		if filter != nil {
			decision := filter.Evaluate(jobs[i], now)
			if decision.Eligible {
				sb.WriteString("    ✓ eligible for auto-accept\n")
			} else {
				sb.WriteString(fmt.Sprintf("    ✗ %s\n", decision.Reason))
			}
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(jobs) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more postings", len(jobs)-maxItemsToShow))
	}

	p.printBox("AVAILABLE JOBS", strings.TrimSuffix(sb.String(), "\n"))
}

// RunSummary describes the settings a run starts with.
type RunSummary struct {
	PortalURL            string
	DryRun               bool
	Admins               int
	Users                int
	IterationsPerSession int
	AutoAccept           bool
	BlockSameDay         bool
	DenyDates            []string
	DenyKeywords         []string
}

// PrintRunSummary outputs the effective settings of a run.
func (p *Printer) PrintRunSummary(s RunSummary) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Portal:      %s\n", s.PortalURL))
	sb.WriteString(fmt.Sprintf("Recipients:  %d admins, %d users\n", s.Admins, s.Users))
	if s.DryRun {
		sb.WriteString("Delivery:    dry run (log only)\n")
	}
	sb.WriteString(fmt.Sprintf("Session:     %d iterations\n", s.IterationsPerSession))
	sb.WriteString(fmt.Sprintf("Auto-accept: %s\n", onOff(s.AutoAccept)))
	if s.AutoAccept {
		sb.WriteString(fmt.Sprintf("  same-day block: %s\n", onOff(s.BlockSameDay)))
		if len(s.DenyDates) > 0 {
			sb.WriteString(fmt.Sprintf("  blocked dates:  %s\n", strings.Join(s.DenyDates, ", ")))
		}
		if len(s.DenyKeywords) > 0 {
			sb.WriteString(fmt.Sprintf("  blocked words:  %s\n", strings.Join(s.DenyKeywords, ", ")))
		}
	}

	p.printBox("JOBWATCH", strings.TrimSuffix(sb.String(), "\n"))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
