package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fieldops-io/fieldops/internal/ticket"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	logger, _ := setupLogging()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Service.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(cfg.Service.DataDir, "tickets.db")
	db, err := ticket.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if downStep > 0 {
		n, err := ticket.MigrateDown(db, downStep)
		if err != nil {
			return err
		}
		logger.Info("migrations rolled back", "path", path, "count", n)
		return nil
	}
	n, err := ticket.Migrate(db)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "path", path, "count", n)
	return nil
}
