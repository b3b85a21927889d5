package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobwatch/internal/browser"
	"github.com/jonathan/jobwatch/internal/notify"
	"github.com/jonathan/jobwatch/internal/observability"
	"github.com/jonathan/jobwatch/internal/portal"
	"github.com/jonathan/jobwatch/internal/schedule"
	"github.com/jonathan/jobwatch/internal/watcher"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the portal until stopped",
	Long: `Run the watcher: poll the portal on the configured schedule, notify users about
new and still-available postings, and auto-accept the first eligible posting.
Sessions are renewed periodically and retried on failure. Admins are notified
and the process exits when a failure cannot be recovered.`,
	RunE: runWatch,
}

var runDryRun bool

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Log notifications instead of sending them")

	rootCmd.AddCommand(runCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
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
	notifier, err := newNotifier(cfg, runDryRun, logger.Named("notify"))
	if err != nil {
		return err
	}

	sessions := browser.NewManager(cfg.BrowserOptions(), logger.Named("browser"))
	source := portal.New(cfg.PortalConfig(), logger.Named("portal"))
	opts := cfg.WatchOptions(loc)
	loop := watcher.NewLoop(sessions, source, notifier, scheduler, opts, logger.Named("watcher"))
	supervisor := watcher.NewSupervisor(loop, logger.Named("supervisor"))

	observability.NewPrinter(cmd.ErrOrStderr()).PrintRunSummary(observability.RunSummary{
		PortalURL:            cfg.Portal.URL,
		DryRun:               runDryRun,
		Admins:               len(cfg.Notify.Admins),
		Users:                len(cfg.Directory().Recipients(notify.Users)),
		IterationsPerSession: opts.IterationsPerSession,
		AutoAccept:           opts.AutoAccept,
		BlockSameDay:         opts.Filter.BlockSameDay,
		DenyDates:            opts.Filter.DenyDates,
		DenyKeywords:         opts.Filter.DenyKeywords,
	})

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return supervisor.Run(ctx)
}

// commandContext returns cmd's context, or Background when run outside
// Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
