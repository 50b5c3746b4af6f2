// Package token implements the bearer token issued to partner sites after a
// successful cross-domain login.
//
// The token is a base64-encoded JSON payload, not a signed credential: any
// holder can decode it, and its only protection against tampering is the
// trust placed in the transport. This matches the wire format partner sites
// already consume.
package token

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/lacs-cc/auth-gateway/internal/models"
)

// SessionLifetime is the fixed validity window of an issued token.
// Tokens are never refreshed or extended.
const SessionLifetime = 24 * time.Hour

// Payload is the decoded content of a bearer token. Timestamp and ExpiresAt
// are milliseconds since the Unix epoch, with ExpiresAt always equal to
// Timestamp plus SessionLifetime.
type Payload struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt int64  `json:"expiresAt"`
}

// ExpiresAtTime returns the expiry as a time.Time.
func (p *Payload) ExpiresAtTime() time.Time {
	return time.UnixMilli(p.ExpiresAt)
}

// Codec issues and parses bearer tokens. The zero value is not usable;
// construct with NewCodec.
type Codec struct {
	now func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a token codec.
func NewCodec(opts ...Option) *Codec {
	c := &Codec{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue mints a token for the given user. The username recorded in the
// payload falls back to the local part of the email when the provider has
// none, so partner sites always receive a display name.
func (c *Codec) Issue(user *models.User) string {
	now := c.now().UnixMilli()
	payload := Payload{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.DisplayName(),
		Timestamp: now,
		ExpiresAt: now + SessionLifetime.Milliseconds(),
	}

	// Payload contains only strings and integers; marshaling cannot fail.
	raw, _ := json.Marshal(payload)
	return base64.StdEncoding.EncodeToString(raw)
}

// Parse decodes a token and returns its payload, or nil if the token is
// malformed or expired. Parse never panics on arbitrary input.
func (c *Codec) Parse(tok string) *Payload {
	raw, err := base64.StdEncoding.DecodeString(tok)
	if err != nil {
		return nil
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	if payload.ID == "" {
		return nil
	}
	if c.now().UnixMilli() > payload.ExpiresAt {
		return nil
	}
	return &payload
}
