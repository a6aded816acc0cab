package runs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles persists profiles.
type Profiles interface {
	repository.Repository[*Profile]

	Register(ctx context.Context, profile *Profile) (*Profile, error)
	RegisterTx(ctx context.Context, tx bun.IDB, profile *Profile) (*Profile, error)
	FindProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	SaveProfile(ctx context.Context, profile *Profile) (*Profile, error)
	SetPaused(ctx context.Context, id uuid.UUID, paused bool) (*Profile, error)
	ListProfiles(ctx context.Context) ([]*Profile, error)
	SchedulableProfiles(ctx context.Context) ([]*Profile, error)
}

type profiles struct {
	repository.Repository[*Profile]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Profiles                        = (*profiles)(nil)
	_ repository.Repository[*Profile] = (*profiles)(nil)
)

// NewProfilesRepository returns a Profiles backed by go-repository-bun.
func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (p *profiles) Register(ctx context.Context, profile *Profile) (*Profile, error) {
	return p.RegisterTx(ctx, p.db, profile)
}

func (p *profiles) RegisterTx(ctx context.Context, tx bun.IDB, profile *Profile) (*Profile, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	profile.UploadSchedule = strings.TrimSpace(profile.UploadSchedule)
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	if err := p.ensureNameFree(ctx, tx, profile); err != nil {
		return nil, err
	}
	now := p.now().UTC()
	profile.CreatedAt = &now
	profile.UpdatedAt = &now

	return p.Repository.CreateTx(ctx, tx, profile)
}

func (p *profiles) FindProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	record, err := p.Repository.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
		return nil, err
	}
	return record, nil
}

// SaveProfile writes every editable column of profile.
func (p *profiles) SaveProfile(ctx context.Context, profile *Profile) (*Profile, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	profile.UploadSchedule = strings.TrimSpace(profile.UploadSchedule)
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	if err := p.ensureNameFree(ctx, p.db, profile); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	profile.UpdatedAt = &now

	res, err := p.db.NewUpdate().
		Model(profile).
		Column("name", "upload_schedule", "paused", "question_prompt", "answer_prompt",
			"background_glob", "voice_name", "font_name", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profile.ID)
	}
	return p.FindProfile(ctx, profile.ID)
}

// ensureNameFree returns ErrProfileExists when a profile other than
// profile already uses its name.
func (p *profiles) ensureNameFree(ctx context.Context, tx bun.IDB, profile *Profile) error {
	taken, err := tx.NewSelect().
		Model((*Profile)(nil)).
		Where("?TableAlias.name = ?", profile.Name).
		Where("?TableAlias.id <> ?", profile.ID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %q", ErrProfileExists, profile.Name)
	}
	return nil
}

func (p *profiles) SetPaused(ctx context.Context, id uuid.UUID, paused bool) (*Profile, error) {
	res, err := p.db.NewUpdate().
		Model((*Profile)(nil)).
		Set("paused = ?", paused).
		Set("updated_at = ?", p.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return p.FindProfile(ctx, id)
}

func (p *profiles) ListProfiles(ctx context.Context) ([]*Profile, error) {
	records := []*Profile{}
	err := p.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	return records, err
}

// SchedulableProfiles lists profiles whose schedule is not paused.
func (p *profiles) SchedulableProfiles(ctx context.Context) ([]*Profile, error) {
	records := []*Profile{}
	err := p.db.NewSelect().
		Model(&records).
		Where("?TableAlias.paused = ?", false).
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	return records, err
}
