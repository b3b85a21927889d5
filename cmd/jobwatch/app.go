package main

import (
	"go.uber.org/zap"

	"github.com/jonathan/jobwatch/internal/config"
	"github.com/jonathan/jobwatch/internal/logging"
	"github.com/jonathan/jobwatch/internal/notify"
)

// setup loads configuration and builds the logger shared by every command.
func setup() (*config.Config, *zap.SugaredLogger, error) {
	logger, err := logging.New(jsonLogs, verbose)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newNotifier returns a Pushover-backed notifier, or one that only logs
// messages when dryRun is set.
func newNotifier(cfg *config.Config, dryRun bool, logger *zap.SugaredLogger) (*notify.Notifier, error) {
	var transport notify.Transport
	if dryRun {
		transport = notify.LogTransport{Logger: logger}
	} else {
		if err := cfg.RequireNotifier(); err != nil {
			return nil, err
		}
		pushover := notify.NewPushover(cfg.Notify.PushoverToken, cfg.Notify.APIURL, cfg.Notify.Timeout)
		pushover.Title = cfg.Notify.Title
		transport = pushover
	}
	return notify.New(transport, cfg.Directory(), cfg.NotifyOptions(), logger), nil
}
