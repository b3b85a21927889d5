package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobwatch/internal/posting"
	"github.com/jonathan/jobwatch/internal/schedule"
	"github.com/jonathan/jobwatch/internal/watcher"
)

var pacific = time.FixedZone("PDT", -7*3600)

type minRand struct{}

func (minRand) IntN(int) int { return 0 }

func TestPrintSchedule(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	s, err := schedule.New(schedule.DefaultBuckets(), pacific, minRand{}, nil)
	require.NoError(t, err)

	now := time.Date(2026, 10, 21, 13, 0, 0, 0, pacific)
	p.PrintSchedule(s, now, 2*time.Minute)
	output := buf.String()

	assert.Contains(t, output, "POLLING SCHEDULE")
	assert.Contains(t, output, "▶ midday")
	assert.Contains(t, output, "night          21:00-05:00   90-270 min  (carry-over)")
	assert.Contains(t, output, "Next check in 2m0s (at 13:02:00)")
}

func TestPrintSchedule_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSchedule(nil, time.Now(), time.Minute)
	assert.Empty(t, buf.String())
}

func TestPrintPostings(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	snap := posting.Snapshot{Postings: posting.NewSet(
		posting.New("10/21/2026", "Lincoln Elementary", "Grade 3"),
		posting.New("10/25/2026", "Roosevelt High", "Chemistry"),
	)}
	filter := watcher.NewFilter(watcher.FilterOptions{BlockSameDay: true, Location: pacific})

	p.PrintPostings(snap, filter, time.Date(2026, 10, 21, 9, 0, 0, 0, pacific))
	output := buf.String()

	assert.Contains(t, output, "AVAILABLE JOBS")
	assert.Contains(t, output, "Found 2 postings")
	assert.Contains(t, output, "#1  10/21/2026 | Lincoln Elementary | Grade 3")
	assert.Contains(t, output, "✗ same-day job (10/21/2026)")
	assert.Contains(t, output, "✓ eligible for auto-accept")
}

func TestPrintPostings_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintPostings(posting.Snapshot{EmptyConfirmed: true}, nil, time.Now())
	assert.Contains(t, buf.String(), "No jobs available")

	buf.Reset()
	p.PrintPostings(posting.Snapshot{}, nil, time.Now())
	assert.Contains(t, buf.String(), "empty state not confirmed")
}

func TestPrintPostings_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	long := strings.Repeat("x", 200)
	p.PrintPostings(posting.Snapshot{Postings: posting.NewSet(posting.New(long))}, nil, time.Now())

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestPrintBox_TruncatesWideRunes(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).printBox("TITLE", strings.Repeat("日", 100)+"\nshort")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	for _, line := range lines {
		assert.Len(t, []rune(line), boxWidth)
	}
	assert.Equal(t, "│ "+strings.Repeat("日", boxWidth-7)+"... │", lines[3])
}

func TestPrintRunSummary(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRunSummary(RunSummary{
		PortalURL:            "https://portal.example.com",
		DryRun:               true,
		Admins:               1,
		Users:                3,
		IterationsPerSession: 10,
		AutoAccept:           true,
		BlockSameDay:         true,
		DenyKeywords:         []string{"Physical Education"},
	})
	output := buf.String()

	assert.Contains(t, output, "JOBWATCH")
	assert.Contains(t, output, "1 admins, 3 users")
	assert.Contains(t, output, "dry run")
	assert.Contains(t, output, "same-day block: on")
	assert.Contains(t, output, "blocked words:  Physical Education")
	assert.NotContains(t, output, "blocked dates")
}
