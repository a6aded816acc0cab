package runs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Uploads persists where finished runs were published. A run is recorded at
// most once per platform.
type Uploads interface {
	Record(ctx context.Context, upload *Upload) (*Upload, error)
	ListForRun(ctx context.Context, runID uuid.UUID) ([]*Upload, error)
}

type uploads struct {
	db  *bun.DB
	now func() time.Time
}

// NewUploadsRepository returns a bun backed Uploads.
func NewUploadsRepository(db *bun.DB) Uploads {
	return &uploads{db: db, now: time.Now}
}

func (u *uploads) Record(ctx context.Context, upload *Upload) (*Upload, error) {
	platform, err := ParseUploadPlatform(string(upload.Platform))
	if err != nil {
		return nil, err
	}
	upload.Platform = platform
	upload.GeneratedURL = strings.TrimSpace(upload.GeneratedURL)

	err = u.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := tx.NewSelect().
			Model((*Run)(nil)).
			Where("?TableAlias.id = ?", upload.RunID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrRunNotFound, upload.RunID)
		}

		exists, err := tx.NewSelect().
			Model((*Upload)(nil)).
			Where("?TableAlias.run_id = ?", upload.RunID).
			Where("?TableAlias.platform = ?", upload.Platform).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrUploadExists, upload.Platform)
		}

		if upload.ID == uuid.Nil {
			upload.ID = uuid.New()
		}
		if upload.UploadedAt.IsZero() {
			upload.UploadedAt = u.now()
		}
		upload.UploadedAt = upload.UploadedAt.UTC().Truncate(time.Second)

		_, err = tx.NewInsert().Model(upload).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return upload, nil
}

func (u *uploads) ListForRun(ctx context.Context, runID uuid.UUID) ([]*Upload, error) {
	records := []*Upload{}
	err := u.db.NewSelect().
		Model(&records).
		Where("?TableAlias.run_id = ?", runID).
		OrderExpr("?TableAlias.uploaded_at ASC").
		Scan(ctx)
	return records, err
}
