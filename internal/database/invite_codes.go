package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lacs-cc/auth-gateway/internal/models"
)

var (
	// ErrCodeExists reports that an insert hit the unique constraint on code.
	// Allocation treats this as a collision and retries with a fresh candidate.
	ErrCodeExists = errors.New("invite code already exists")

	// ErrCodeNotFound reports that no record matches the given code.
	ErrCodeNotFound = errors.New("invite code not found")

	// ErrCodeNotRedeemable reports that the conditional update matched no row:
	// the code is either absent or already used.
	ErrCodeNotRedeemable = errors.New("invite code already used or not found")
)

// uniqueViolation is the Postgres error code for unique-constraint violations.
const uniqueViolation = "23505"

// InviteCodeRepository handles invite code database operations.
type InviteCodeRepository struct {
	db *DB
}

// NewInviteCodeRepository creates a new invite code repository.
func NewInviteCodeRepository(db *DB) *InviteCodeRepository {
	return &InviteCodeRepository{db: db}
}

// Create inserts a new unused invite code. The unique index on code is the
// final arbiter of uniqueness; a violation surfaces as ErrCodeExists so the
// caller can retry with a different candidate.
func (r *InviteCodeRepository) Create(ctx context.Context, code string, createdBy string) (*models.InviteCode, error) {
	query := `
		INSERT INTO invite_codes (code, created_by, is_used, created_at)
		VALUES ($1, $2, FALSE, $3)
		RETURNING id, code, created_at
	`

	ic := &models.InviteCode{CreatedBy: &createdBy}
	err := r.db.QueryRowContext(ctx, query, code, createdBy, time.Now()).Scan(
		&ic.ID,
		&ic.Code,
		&ic.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("insert invite code %q: %w", code, ErrCodeExists)
		}
		return nil, fmt.Errorf("failed to create invite code: %w", err)
	}

	return ic, nil
}

// GetByCode retrieves an invite code record by its normalized code.
func (r *InviteCodeRepository) GetByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	query := `
		SELECT id, code, created_at, created_by, is_used, used_at, used_by_email
		FROM invite_codes
		WHERE code = $1
	`

	ic := &models.InviteCode{}
	var createdBy, usedByEmail sql.NullString
	var usedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&ic.ID,
		&ic.Code,
		&ic.CreatedAt,
		&createdBy,
		&ic.IsUsed,
		&usedAt,
		&usedByEmail,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite code: %w", err)
	}

	if createdBy.Valid {
		ic.CreatedBy = &createdBy.String
	}
	if usedAt.Valid {
		ic.UsedAt = &usedAt.Time
	}
	if usedByEmail.Valid {
		ic.UsedByEmail = &usedByEmail.String
	}

	return ic, nil
}

// ListByCreator retrieves all invite codes issued by a user, newest first.
func (r *InviteCodeRepository) ListByCreator(ctx context.Context, createdBy string) ([]*models.InviteCode, error) {
	query := `
		SELECT id, code, created_at, created_by, is_used, used_at, used_by_email
		FROM invite_codes
		WHERE created_by = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, createdBy)
	if err != nil {
		return nil, fmt.Errorf("failed to query invite codes: %w", err)
	}
	defer rows.Close()

	var codes []*models.InviteCode
	for rows.Next() {
		ic := &models.InviteCode{}
		var creator, usedByEmail sql.NullString
		var usedAt sql.NullTime

		err := rows.Scan(
			&ic.ID,
			&ic.Code,
			&ic.CreatedAt,
			&creator,
			&ic.IsUsed,
			&usedAt,
			&usedByEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite code: %w", err)
		}

		if creator.Valid {
			ic.CreatedBy = &creator.String
		}
		if usedAt.Valid {
			ic.UsedAt = &usedAt.Time
		}
		if usedByEmail.Valid {
			ic.UsedByEmail = &usedByEmail.String
		}

		codes = append(codes, ic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invite codes: %w", err)
	}

	return codes, nil
}

// MarkUsed consumes an invite code with a single conditional update. The
// is_used = FALSE predicate is the only concurrency guard: of two concurrent
// redemption attempts, at most one update matches and the loser gets
// ErrCodeNotRedeemable. This must stay one statement; a read-then-write pair
// would reintroduce the race.
func (r *InviteCodeRepository) MarkUsed(ctx context.Context, code string, usedByEmail string) error {
	query := `
		UPDATE invite_codes
		SET is_used = TRUE, used_at = $2, used_by_email = $3
		WHERE code = $1 AND is_used = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, code, time.Now(), usedByEmail)
	if err != nil {
		return fmt.Errorf("failed to mark invite code used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCodeNotRedeemable
	}

	return nil
}
