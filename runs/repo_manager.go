package runs

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Profiles() Profiles
	Runs() Runs
	Overrides() Overrides
	Connections() Connections
	Uploads() Uploads
}

type mngr struct {
	db        *bun.DB
	profiles  Profiles
	runs      Runs
	overrides Overrides
	conns     Connections
	uploads   Uploads
}

// NewRepositoryManager wires every repository onto db.
func NewRepositoryManager(db *bun.DB, opts ...RunsOption) RepositoryManager {
	return &mngr{
		db:        db,
		profiles:  NewProfilesRepository(db),
		runs:      NewRunsRepository(db, opts...),
		overrides: NewOverridesRepository(db),
		conns:     NewConnectionsRepository(db),
		uploads:   NewUploadsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.profiles == nil {
		return errors.New("repository profiles should be initialized")
	}

	if m.runs == nil {
		return errors.New("repository runs should be initialized")
	}

	if m.overrides == nil {
		return errors.New("repository overrides should be initialized")
	}

	if m.conns == nil {
		return errors.New("repository connections should be initialized")
	}

	if m.uploads == nil {
		return errors.New("repository uploads should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Profiles() Profiles {
	return m.profiles
}

func (m mngr) Runs() Runs {
	return m.runs
}

func (m mngr) Overrides() Overrides {
	return m.overrides
}

func (m mngr) Connections() Connections {
	return m.conns
}

func (m mngr) Uploads() Uploads {
	return m.uploads
}
