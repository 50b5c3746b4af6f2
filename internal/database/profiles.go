package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lacs-cc/auth-gateway/internal/models"
)

// ProfileRepository handles profile database operations.
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetByID retrieves a profile by the identity provider's subject id.
// Returns (nil, nil) when no profile row exists; a missing profile is not an
// error for callers, which degrade to token-embedded fields only.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `
		SELECT id, username, avatar_url, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`

	p := &models.Profile{}
	var username, avatarURL sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&username,
		&avatarURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if username.Valid {
		p.Username = &username.String
	}
	if avatarURL.Valid {
		p.AvatarURL = &avatarURL.String
	}

	return p, nil
}
