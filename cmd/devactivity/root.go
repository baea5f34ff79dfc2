package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/piotr-liszka/open-dev-activity/internal/config"
	"github.com/piotr-liszka/open-dev-activity/internal/logger"
)

var (
	cfg config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "devactivity",
	Short: "Normalize developer activity from GitHub and Jira into one timeline",
	Long: `devactivity pulls issue and pull-request events from the configured
sources, reconstructs per-entity status timelines with calendar-aware
working time, and stores deduplicated activity records in Postgres.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		log = logger.New(cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return nil
	},
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(exportCmd)
}
