package runs

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// MigrationsSource returns dir when set, the embedded migrations otherwise.
func MigrationsSource(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	return fs.Sub(GetMigrationsFS(), "data/sql/migrations")
}

// Migrator applies the schema migrations.
type Migrator struct {
	migrator *migrate.Migrator
	logger   Logger
}

// NewMigrator discovers migrations in source.
func NewMigrator(db *bun.DB, source fs.FS, logger Logger) (*Migrator, error) {
	if logger == nil {
		logger = defLogger{}
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(source); err != nil {
		return nil, fmt.Errorf("discover migrations: %w", err)
	}

	return &Migrator{
		migrator: migrate.NewMigrator(db, migrations),
		logger:   logger,
	}, nil
}

// Up applies every pending migration and returns the group applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}

	group, err := m.migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	if group.IsZero() {
		m.logger.Info("database schema is up to date")
		return nil, nil
	}

	names := make([]string, 0, len(group.Migrations))
	for _, mig := range group.Migrations {
		names = append(names, mig.Name)
	}
	m.logger.Info("migrations applied", "group", group.ID, "count", len(names))
	return names, nil
}

// Down rolls back the last applied group.
func (m *Migrator) Down(ctx context.Context) ([]string, error) {
	if err := m.migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("init migrations: %w", err)
	}

	group, err := m.migrator.Rollback(ctx)
	if err != nil {
		return nil, fmt.Errorf("rollback migrations: %w", err)
	}

	if group.IsZero() {
		m.logger.Info("nothing to roll back")
		return nil, nil
	}

	names := make([]string, 0, len(group.Migrations))
	for _, mig := range group.Migrations {
		names = append(names, mig.Name)
	}
	m.logger.Info("migrations rolled back", "group", group.ID, "count", len(names))
	return names, nil
}
