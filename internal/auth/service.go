// Package auth coordinates the cross-domain authentication handshake:
// origin validation, credential exchange with the identity provider, bearer
// token issuance, and result delivery back to the partner site.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/lacs-cc/auth-gateway/internal/database"
	"github.com/lacs-cc/auth-gateway/internal/identity"
	"github.com/lacs-cc/auth-gateway/internal/models"
	"github.com/lacs-cc/auth-gateway/internal/origin"
	"github.com/lacs-cc/auth-gateway/internal/token"
)

// ErrTokenInvalid reports a bearer token that failed to parse or has expired.
var ErrTokenInvalid = errors.New("token invalid or expired")

// Service is the handshake orchestrator. It is stateless across requests:
// every action is evaluated fresh from its inputs, and the only sessions that
// exist are the ones the identity provider manages internally.
type Service struct {
	origins  *origin.Validator
	provider identity.Provider
	codec    *token.Codec
	profiles database.ProfileStore
	logger   *zap.Logger
}

// NewService creates a handshake orchestrator.
func NewService(origins *origin.Validator, provider identity.Provider, codec *token.Codec, profiles database.ProfileStore, logger *zap.Logger) *Service {
	return &Service{
		origins:  origins,
		provider: provider,
		codec:    codec,
		profiles: profiles,
		logger:   logger,
	}
}

// ValidateOrigin reports whether an origin is on the allow-list. The boundary
// calls this twice per request: once for the transport Origin header and once
// for the origin carried in the request body.
func (s *Service) ValidateOrigin(o string) bool {
	return s.origins.Validate(o)
}

// Login performs the credential exchange and mints a bearer token.
//
// Credential rejections surface as identity.ErrInvalidCredentials without
// distinguishing unknown users from wrong passwords. On success the result
// carries a redirect delivery when returnURL is set, otherwise a
// cross-window message addressed to messageOrigin (the already-validated
// transport origin).
func (s *Service) Login(ctx context.Context, email, password, returnURL, messageOrigin string) (*LoginResult, error) {
	user, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return nil, identity.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign-in failed: %w", err)
	}

	// Partner sites always receive a display name, even when the provider
	// has no username on record.
	user.Username = user.DisplayName()

	tok := s.codec.Issue(user)

	result := &LoginResult{User: user, Token: tok}
	if returnURL != "" {
		userInfo, err := json.Marshal(user)
		if err != nil {
			return nil, fmt.Errorf("failed to encode user info: %w", err)
		}
		redirect, err := buildRedirectURL(returnURL, map[string]string{
			"loginSuccess": "true",
			"authToken":    tok,
			"userInfo":     url.QueryEscape(string(userInfo)),
		})
		if err != nil {
			return nil, fmt.Errorf("invalid return url: %w", err)
		}
		result.Delivery = Delivery{Kind: DeliveryRedirect, URL: redirect}
	} else {
		result.Delivery = Delivery{
			Kind:         DeliveryMessage,
			TargetOrigin: messageOrigin,
			Payload:      &MessagePayload{Success: true, User: user, Token: tok},
		}
	}

	s.logger.Info("cross_domain_login_succeeded",
		zap.String("subject", user.ID),
		zap.String("delivery", string(result.Delivery.Kind)),
	)
	return result, nil
}

// Logout revokes the provider session and builds the optional post-logout
// redirect.
func (s *Service) Logout(ctx context.Context, accessToken, returnURL string) (*LogoutResult, error) {
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		return nil, fmt.Errorf("sign-out failed: %w", err)
	}

	result := &LogoutResult{}
	if returnURL != "" {
		redirect, err := buildRedirectURL(returnURL, map[string]string{
			"logoutSuccess": "true",
		})
		if err != nil {
			return nil, fmt.Errorf("invalid return url: %w", err)
		}
		result.RedirectURL = redirect
	}
	return result, nil
}

// Verify parses a bearer token and returns the identity embedded in it.
func (s *Service) Verify(tok string) (*VerifyResult, error) {
	payload := s.codec.Parse(tok)
	if payload == nil {
		return nil, ErrTokenInvalid
	}
	return &VerifyResult{
		User: &models.User{
			ID:       payload.ID,
			Username: payload.Username,
			Email:    payload.Email,
		},
		ExpiresAt: payload.ExpiresAt,
	}, nil
}

// GetUserInfo parses a bearer token and enriches the embedded identity with
// the locally stored profile. A missing profile, or a failing profile store,
// degrades to the token fields alone rather than failing the call.
func (s *Service) GetUserInfo(ctx context.Context, tok string) (*models.User, error) {
	payload := s.codec.Parse(tok)
	if payload == nil {
		return nil, ErrTokenInvalid
	}

	user := &models.User{
		ID:       payload.ID,
		Username: payload.Username,
		Email:    payload.Email,
	}

	profile, err := s.profiles.GetByID(ctx, payload.ID)
	if err != nil {
		s.logger.Warn("profile_lookup_failed",
			zap.String("subject", payload.ID),
			zap.Error(err),
		)
		return user, nil
	}
	if profile != nil {
		user.Avatar = profile.AvatarURL
		if user.Username == "" && profile.Username != nil {
			user.Username = *profile.Username
		}
	}
	return user, nil
}

// Status answers the read-only login status check. An empty token is not an
// error; the caller is simply not logged in.
func (s *Service) Status(tok string) *StatusResult {
	if tok == "" {
		return &StatusResult{IsLoggedIn: false}
	}
	payload := s.codec.Parse(tok)
	if payload == nil {
		return &StatusResult{IsLoggedIn: false}
	}
	return &StatusResult{
		IsLoggedIn: true,
		User: &models.User{
			ID:       payload.ID,
			Username: payload.Username,
			Email:    payload.Email,
		},
	}
}

// buildRedirectURL appends params to base, replacing any same-named query
// parameters and preserving the rest.
func buildRedirectURL(base string, params map[string]string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse return url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("return url must be absolute: %q", base)
	}

	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
