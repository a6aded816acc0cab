package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Runs persists runs with optimistic locking on Version.
type Runs interface {
	Store

	SaveRunTx(ctx context.Context, tx bun.IDB, run *Run) error
	GetRunTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Run, error)
	Create(ctx context.Context, run *Run) (*Run, error)
	CreateTx(ctx context.Context, tx bun.IDB, run *Run) (*Run, error)
	List(ctx context.Context, filter RunFilter) ([]*Run, error)
	LatestForProfile(ctx context.Context, profileID uuid.UUID) (*Run, error)
	LatestForProfileTx(ctx context.Context, tx bun.IDB, profileID uuid.UUID) (*Run, error)
	LatestScheduled(ctx context.Context, profileID uuid.UUID) (*Run, error)
	// LatestScheduledTx ignores override and manual runs, so only the
	// profile's own schedule moves its cron anchor.
	LatestScheduledTx(ctx context.Context, tx bun.IDB, profileID uuid.UUID) (*Run, error)
}

type runs struct {
	db  *bun.DB
	now func() time.Time
}

var _ Runs = (*runs)(nil)

// RunsOption customizes the runs repository.
type RunsOption func(*runs)

// WithRunsClock injects a custom clock (useful for tests).
func WithRunsClock(clock func() time.Time) RunsOption {
	return func(r *runs) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewRunsRepository returns a bun backed Runs.
func NewRunsRepository(db *bun.DB, opts ...RunsOption) Runs {
	r := &runs{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *runs) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	return r.GetRunTx(ctx, r.db, id)
}

func (r *runs) GetRunTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Run, error) {
	record := &Run{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	return record, nil
}

func (r *runs) SaveRun(ctx context.Context, run *Run) error {
	return r.SaveRunTx(ctx, r.db, run)
}

func (r *runs) SaveRunTx(ctx context.Context, tx bun.IDB, run *Run) error {
	expected := run.Version
	updatedAt := r.now().UTC()

	run.Version = expected + 1
	previousUpdatedAt := run.UpdatedAt
	run.UpdatedAt = &updatedAt

	res, err := tx.NewUpdate().
		Model(run).
		Column("current_state", "error", "started_at", "finished_at", "version", "updated_at").
		WherePK().
		Where("version = ?", expected).
		Exec(ctx)
	if err == nil {
		var affected int64
		if affected, err = res.RowsAffected(); err == nil && affected == 1 {
			return nil
		}
		if err == nil {
			err = r.missingOrStale(ctx, tx, run.ID, expected)
		}
	}

	run.Version = expected
	run.UpdatedAt = previousUpdatedAt
	return err
}

func (r *runs) missingOrStale(ctx context.Context, tx bun.IDB, id uuid.UUID, expected int64) error {
	exists, err := tx.NewSelect().
		Model((*Run)(nil)).
		Where("?TableAlias.id = ?", id).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return fmt.Errorf("%w: run %s is no longer at version %d", ErrStaleRun, id, expected)
}

func (r *runs) Create(ctx context.Context, run *Run) (*Run, error) {
	return r.CreateTx(ctx, r.db, run)
}

func (r *runs) CreateTx(ctx context.Context, tx bun.IDB, run *Run) (*Run, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.State == "" {
		run.State = StateIdling
	}
	if run.Source == "" {
		run.Source = SourceScheduled
	}
	if !run.Source.Valid() {
		return nil, fmt.Errorf("%w: source %q", ErrUnknownState, run.Source)
	}
	if !run.State.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, run.State)
	}

	now := r.now().UTC()
	run.RunDate = run.RunDate.UTC()
	run.CreatedAt = &now
	run.UpdatedAt = &now

	if _, err := tx.NewInsert().Model(run).Exec(ctx); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *runs) List(ctx context.Context, filter RunFilter) ([]*Run, error) {
	records := []*Run{}
	q := r.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.run_date DESC")

	if filter.State != "" {
		q = q.Where("?TableAlias.current_state = ?", filter.State)
	}
	if filter.Source != "" {
		q = q.Where("?TableAlias.source = ?", filter.Source)
	}
	if filter.ProfileID != uuid.Nil {
		q = q.Where("?TableAlias.profile_id = ?", filter.ProfileID)
	}
	if filter.Active {
		q = q.Where("?TableAlias.current_state NOT IN (?)", bun.In([]RunState{StateDone, StateError}))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *runs) LatestForProfile(ctx context.Context, profileID uuid.UUID) (*Run, error) {
	return r.LatestForProfileTx(ctx, r.db, profileID)
}

func (r *runs) LatestForProfileTx(ctx context.Context, tx bun.IDB, profileID uuid.UUID) (*Run, error) {
	return r.latestTx(ctx, tx, profileID, "")
}

func (r *runs) LatestScheduled(ctx context.Context, profileID uuid.UUID) (*Run, error) {
	return r.LatestScheduledTx(ctx, r.db, profileID)
}

func (r *runs) LatestScheduledTx(ctx context.Context, tx bun.IDB, profileID uuid.UUID) (*Run, error) {
	return r.latestTx(ctx, tx, profileID, SourceScheduled)
}

func (r *runs) latestTx(ctx context.Context, tx bun.IDB, profileID uuid.UUID, source RunSource) (*Run, error) {
	record := &Run{}
	q := tx.NewSelect().
		Model(record).
		Where("?TableAlias.profile_id = ?", profileID)
	if source != "" {
		q = q.Where("?TableAlias.source = ?", source)
	}
	err := q.OrderExpr("?TableAlias.run_date DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no runs for profile %s", ErrRunNotFound, profileID)
		}
		return nil, err
	}
	return record, nil
}
