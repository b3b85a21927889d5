package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobwatch/internal/browser"
	"github.com/jonathan/jobwatch/internal/observability"
	"github.com/jonathan/jobwatch/internal/portal"
	"github.com/jonathan/jobwatch/internal/watcher"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Log in once and print the available jobs",
	Long:  "Open a browser session, log in, scrape the available-jobs table once and print each posting with its auto-accept verdict. Nothing is accepted and no notifications are sent.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	sessions := browser.NewManager(cfg.BrowserOptions(), logger.Named("browser"))
	defer sessions.Destroy()

	h, err := sessions.Create(ctx)
	if err != nil {
		return err
	}
	source := portal.New(cfg.PortalConfig(), logger.Named("portal"))
	if err := source.Authenticate(ctx, h); err != nil {
		return err
	}
	snap, err := source.ListPostings(ctx, h)
	if err != nil {
		return err
	}

	filter := watcher.NewFilter(cfg.WatchOptions(loc).Filter)
	observability.NewPrinter(cmd.OutOrStdout()).PrintPostings(snap, filter, time.Now())
	return nil
}
