package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobwatch/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a test notification",
	Long:  "Send a message, optionally with an attached file, to every recipient of an audience. Useful for checking Pushover credentials and recipient keys. The attachment is deleted after sending.",
	RunE:  runNotify,
}

var (
	notifyAudience string
	notifyMessage  string
	notifyAttach   string
	notifyDryRun   bool
)

func init() {
	notifyCmd.Flags().StringVarP(&notifyAudience, "audience", "a", string(notify.Admins), "Audience to notify: admins or users")
	notifyCmd.Flags().StringVarP(&notifyMessage, "message", "m", "Test message from jobwatch", "Message text")
	notifyCmd.Flags().StringVar(&notifyAttach, "attach", "", "Path to a file to attach (deleted after sending)")
	notifyCmd.Flags().BoolVar(&notifyDryRun, "dry-run", false, "Log the notification instead of sending it")

	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, _ []string) error {
	audience := notify.Audience(notifyAudience)
	if audience != notify.Admins && audience != notify.Users {
		return fmt.Errorf("unknown audience %q (want %s or %s)", notifyAudience, notify.Admins, notify.Users)
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	recipients := cfg.Directory().Recipients(audience)
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients configured for audience %q", audience)
	}

	notifier, err := newNotifier(cfg, notifyDryRun, logger.Named("notify"))
	if err != nil {
		return err
	}
	notifier.Notify(commandContext(cmd), audience, notifyMessage, notifyAttach)

	fmt.Fprintf(cmd.OutOrStdout(), "Notified %d %s recipient(s)\n", len(recipients), audience)
	return nil
}
