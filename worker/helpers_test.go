package worker_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/reddyt/reddyt-admin/runs"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func setupManager(t *testing.T) runs.RepositoryManager {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	source, err := runs.MigrationsSource("")
	require.NoError(t, err)
	migrator, err := runs.NewMigrator(db, source, nopLogger{})
	require.NoError(t, err)
	_, err = migrator.Up(context.Background())
	require.NoError(t, err)

	return runs.NewRepositoryManager(db)
}

func newProfile(t *testing.T, repo runs.RepositoryManager, name, schedule string) *runs.Profile {
	t.Helper()

	profile, err := repo.Profiles().Register(context.Background(), &runs.Profile{
		Name:           name,
		UploadSchedule: schedule,
	})
	require.NoError(t, err)
	return profile
}
