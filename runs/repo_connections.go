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

// Connections persists the OAuth token sets of profiles. A profile holds at
// most one token set per OAuthType.
type Connections interface {
	Add(ctx context.Context, conn *ProfileOAuth) (*ProfileOAuth, error)
	ListForProfile(ctx context.Context, profileID uuid.UUID) ([]*ProfileOAuth, error)
	Get(ctx context.Context, profileID uuid.UUID, oauthType OAuthType) (*ProfileOAuth, error)
	// UpdateTokens overwrites both tokens. A nil token clears the column.
	UpdateTokens(ctx context.Context, profileID uuid.UUID, oauthType OAuthType, refreshToken, authToken *string) (*ProfileOAuth, error)
	Remove(ctx context.Context, profileID uuid.UUID, oauthType OAuthType) error
}

type connections struct {
	db  *bun.DB
	now func() time.Time
}

// NewConnectionsRepository returns a bun backed Connections.
func NewConnectionsRepository(db *bun.DB) Connections {
	return &connections{db: db, now: time.Now}
}

func (c *connections) Add(ctx context.Context, conn *ProfileOAuth) (*ProfileOAuth, error) {
	if conn.ProfileID == uuid.Nil {
		return nil, fmt.Errorf("%w: connection without profile", ErrProfileNotFound)
	}
	oauthType, err := ParseOAuthType(string(conn.OAuthType))
	if err != nil {
		return nil, err
	}
	conn.OAuthType = oauthType

	err = c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*ProfileOAuth)(nil)).
			Where("?TableAlias.profile_id = ?", conn.ProfileID).
			Where("?TableAlias.oauth_type = ?", conn.OAuthType).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrConnectionExists, conn.OAuthType)
		}

		if conn.ID == uuid.Nil {
			conn.ID = uuid.New()
		}
		now := c.now().UTC()
		conn.CreatedAt = &now
		conn.UpdatedAt = &now

		_, err = tx.NewInsert().Model(conn).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *connections) ListForProfile(ctx context.Context, profileID uuid.UUID) ([]*ProfileOAuth, error) {
	records := []*ProfileOAuth{}
	err := c.db.NewSelect().
		Model(&records).
		Where("?TableAlias.profile_id = ?", profileID).
		OrderExpr("?TableAlias.oauth_type ASC").
		Scan(ctx)
	return records, err
}

func (c *connections) Get(ctx context.Context, profileID uuid.UUID, oauthType OAuthType) (*ProfileOAuth, error) {
	record := &ProfileOAuth{}
	err := c.db.NewSelect().
		Model(record).
		Where("?TableAlias.profile_id = ?", profileID).
		Where("?TableAlias.oauth_type = ?", oauthType).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s for profile %s", ErrConnectionNotFound, oauthType, profileID)
		}
		return nil, err
	}
	return record, nil
}

func (c *connections) UpdateTokens(ctx context.Context, profileID uuid.UUID, oauthType OAuthType, refreshToken, authToken *string) (*ProfileOAuth, error) {
	res, err := c.db.NewUpdate().
		Model((*ProfileOAuth)(nil)).
		Set("refresh_token = ?", refreshToken).
		Set("auth_token = ?", authToken).
		Set("updated_at = ?", c.now().UTC()).
		Where("profile_id = ?", profileID).
		Where("oauth_type = ?", oauthType).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s for profile %s", ErrConnectionNotFound, oauthType, profileID)
	}
	return c.Get(ctx, profileID, oauthType)
}

func (c *connections) Remove(ctx context.Context, profileID uuid.UUID, oauthType OAuthType) error {
	res, err := c.db.NewDelete().
		Model((*ProfileOAuth)(nil)).
		Where("profile_id = ?", profileID).
		Where("oauth_type = ?", oauthType).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s for profile %s", ErrConnectionNotFound, oauthType, profileID)
	}
	return nil
}
