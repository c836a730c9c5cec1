package main

import (
	"fmt"

	"github.com/isdelr/blog/internal/config"
	"github.com/isdelr/blog/internal/database"
	"github.com/isdelr/blog/internal/logger"
	"github.com/spf13/cobra"
)

// NewInitDBCmd creates the init-db subcommand.
func NewInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Clear the existing data and create new tables",
		RunE:  runInitDB,
	}
}

func runInitDB(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFile)

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Reset(cmd.Context(), db); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Initialized the database.")
	return nil
}
