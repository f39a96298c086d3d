package main

import (
	"fmt"
	"os"

	"github.com/chatwire/chatwire/internal/config"
	"github.com/chatwire/chatwire/internal/db"
	"github.com/chatwire/chatwire/internal/logger"
)

func runMigrate() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	if err := db.Migrate(cfg.Postgres); err != nil {
		return err
	}
	logger.L.Info("migrations applied")
	return nil
}
