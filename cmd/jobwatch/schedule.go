package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobwatch/internal/observability"
	"github.com/jonathan/jobwatch/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Show the polling schedule",
	Long:  "Print the time-of-day schedule and sample the wait the watcher would choose at a given time (default now).",
	RunE:  runSchedule,
}

var scheduleAt string

// atLayouts are the accepted --at formats, tried in order.
var atLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04", "15:04"}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleAt, "at", "", `Time to sample at, e.g. "2026-10-21 04:50" or "04:50" (schedule timezone)`)

	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	scheduler, err := schedule.New(cfg.Schedule.Buckets, loc, nil, logger.Named("schedule"))
	if err != nil {
		return err
	}

	at, err := parseAt(scheduleAt, time.Now(), loc)
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintSchedule(scheduler, at, scheduler.Wait(at))
	return nil
}

// parseAt reads value in loc. A bare clock time is taken on now's date.
// An empty value is now.
func parseAt(value string, now time.Time, loc *time.Location) (time.Time, error) {
	if value == "" {
		return now.In(loc), nil
	}
	for _, layout := range atLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err != nil {
			continue
		}
		if layout == "15:04" {
			y, m, d := now.In(loc).Date()
			t = time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --at %q: use RFC 3339, \"2006-01-02 15:04\" or \"15:04\"", value)
}
