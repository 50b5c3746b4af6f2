package database

import (
	"context"

	"github.com/lacs-cc/auth-gateway/internal/models"
)

// InviteCodeStore defines the store operations the invite service depends on.
// This interface enables better testability by allowing fake implementations.
type InviteCodeStore interface {
	Create(ctx context.Context, code string, createdBy string) (*models.InviteCode, error)
	GetByCode(ctx context.Context, code string) (*models.InviteCode, error)
	ListByCreator(ctx context.Context, createdBy string) ([]*models.InviteCode, error)
	MarkUsed(ctx context.Context, code string, usedByEmail string) error
}

// ProfileStore defines the profile lookup used by the handshake orchestrator.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

// Ensure concrete types implement the interfaces
var (
	_ InviteCodeStore = (*InviteCodeRepository)(nil)
	_ ProfileStore    = (*ProfileRepository)(nil)
)
