// Package identity adapts the external identity provider that owns
// credential verification and sessions. This service never sees password
// hashes; it only forwards credentials and consumes the provider's answers.
package identity

import (
	"context"
	"errors"

	"github.com/lacs-cc/auth-gateway/internal/models"
)

// ErrInvalidCredentials reports a rejected credential exchange. The provider's
// reason (unknown user vs. wrong password) is deliberately collapsed into one
// error so callers cannot enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Provider is the identity provider surface the orchestrator depends on.
type Provider interface {
	// SignIn exchanges credentials for the authenticated user.
	// A rejected exchange returns ErrInvalidCredentials; anything else is an
	// upstream failure.
	SignIn(ctx context.Context, email, password string) (*models.User, error)

	// SignOut revokes the provider-side session for the given access token.
	SignOut(ctx context.Context, accessToken string) error

	// GetUser resolves a provider access token to the user it belongs to.
	GetUser(ctx context.Context, accessToken string) (*models.User, error)
}
