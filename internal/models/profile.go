package models

import "time"

// Profile is the locally stored profile row keyed by the identity provider's
// subject id. All fields besides ID are optional; callers degrade gracefully
// when they are absent.
type Profile struct {
	ID        string    `json:"id"`
	Username  *string   `json:"username,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
