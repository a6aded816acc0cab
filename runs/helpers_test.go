package runs_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

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

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	source, err := runs.MigrationsSource("")
	require.NoError(t, err)

	migrator, err := runs.NewMigrator(db, source, nopLogger{})
	require.NoError(t, err)

	_, err = migrator.Up(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func setupManager(t *testing.T) runs.RepositoryManager {
	t.Helper()
	return runs.NewRepositoryManager(setupDB(t))
}

func newProfile(t *testing.T, repo runs.RepositoryManager, name string) *runs.Profile {
	t.Helper()

	profile, err := repo.Profiles().Register(context.Background(), &runs.Profile{
		Name:           name,
		UploadSchedule: "0 9 * * *",
		QuestionPrompt: "Ask something people argue about",
		AnswerPrompt:   "Answer like a tired redditor",
		BackgroundGlob: "minecraft/*.mp4",
		VoiceName:      "en-US-Neural2-J",
		FontName:       "Roboto",
	})
	require.NoError(t, err)
	return profile
}
