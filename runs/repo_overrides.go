package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Overrides persists one-off run requests.
type Overrides interface {
	Create(ctx context.Context, override *ProfileOverride) (*ProfileOverride, error)
	ListForProfile(ctx context.Context, profileID uuid.UUID) ([]*ProfileOverride, error)
	// ClaimDueTx marks every unclaimed override due at or before now as
	// claimed and returns them. An override is claimed at most once.
	ClaimDueTx(ctx context.Context, tx bun.IDB, now time.Time) ([]*ProfileOverride, error)
}

type overrides struct {
	db  *bun.DB
	now func() time.Time
}

// NewOverridesRepository returns a bun backed Overrides.
func NewOverridesRepository(db *bun.DB) Overrides {
	return &overrides{db: db, now: time.Now}
}

func (o *overrides) Create(ctx context.Context, override *ProfileOverride) (*ProfileOverride, error) {
	if override.ProfileID == uuid.Nil {
		return nil, fmt.Errorf("%w: override without profile", ErrProfileNotFound)
	}
	if override.ID == uuid.Nil {
		override.ID = uuid.New()
	}

	now := o.now().UTC()
	override.RunsAt = override.RunsAt.UTC().Truncate(time.Second)
	override.CreatedAt = &now

	if _, err := o.db.NewInsert().Model(override).Exec(ctx); err != nil {
		return nil, err
	}
	return override, nil
}

func (o *overrides) ListForProfile(ctx context.Context, profileID uuid.UUID) ([]*ProfileOverride, error) {
	records := []*ProfileOverride{}
	err := o.db.NewSelect().
		Model(&records).
		Where("?TableAlias.profile_id = ?", profileID).
		OrderExpr("?TableAlias.runs_at ASC").
		Scan(ctx)
	return records, err
}

func (o *overrides) ClaimDueTx(ctx context.Context, tx bun.IDB, now time.Time) ([]*ProfileOverride, error) {
	due := []*ProfileOverride{}
	err := tx.NewSelect().
		Model(&due).
		Where("?TableAlias.claimed = ?", false).
		Where("?TableAlias.runs_at <= ?", now.UTC()).
		OrderExpr("?TableAlias.runs_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	claimed := make([]*ProfileOverride, 0, len(due))
	for _, ov := range due {
		res, err := tx.NewUpdate().
			Model((*ProfileOverride)(nil)).
			Set("claimed = ?", true).
			Where("id = ?", ov.ID).
			Where("claimed = ?", false).
			Exec(ctx)
		if err != nil {
			return nil, err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			continue
		}
		ov.Claimed = true
		claimed = append(claimed, ov)
	}
	return claimed, nil
}
