package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/reddyt/reddyt-admin/config"
	"github.com/reddyt/reddyt-admin/logging"
	"github.com/reddyt/reddyt-admin/runs"
	"github.com/uptrace/bun"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// openDatabase connects to the configured database and enables foreign
// keys on SQLite.
func (c *commandContext) openDatabase(ctx context.Context) (*bun.DB, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	db, err := runs.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	if !runs.IsPostgres(cfg.Database.DSN) {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func (c *commandContext) migrator(db *bun.DB, logger runs.Logger) (*runs.Migrator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	source, err := runs.MigrationsSource(cfg.Database.Migrations)
	if err != nil {
		return nil, fmt.Errorf("migrations source: %w", err)
	}
	return runs.NewMigrator(db, source, logger)
}
