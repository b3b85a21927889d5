// Package main provides the entry point for jobwatch, a bot that watches a
// job-assignment portal, notifies subscribers about new postings and can
// accept them automatically.
package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "jobwatch",
	Short:         "Job portal watcher",
	Long:          "jobwatch polls a job-assignment portal on an adaptive schedule, sends push notifications for new postings and optionally accepts eligible jobs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configFile string
	jsonLogs   bool
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML or TOML config file (environment variables override it)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
