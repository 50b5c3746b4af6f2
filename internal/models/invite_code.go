package models

import "time"

// InviteCode represents a single-use registration code.
// Code is always 6 uppercase letters/digits; the invite_codes table enforces
// uniqueness on it. UsedAt and UsedByEmail are set exactly once, when IsUsed
// transitions from false to true.
type InviteCode struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	CreatedAt   time.Time  `json:"created_at"`
	CreatedBy   *string    `json:"created_by,omitempty"`
	IsUsed      bool       `json:"is_used"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	UsedByEmail *string    `json:"used_by_email,omitempty"`
}
