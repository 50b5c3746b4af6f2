package auth

import "github.com/lacs-cc/auth-gateway/internal/models"

// DeliveryKind selects how a login result travels back to the partner site.
type DeliveryKind string

const (
	// DeliveryRedirect sends the browser to a return URL carrying the result
	// in query parameters.
	DeliveryRedirect DeliveryKind = "redirect"
	// DeliveryMessage relays the result to the opener window via a
	// cross-window message addressed to the verified origin.
	DeliveryMessage DeliveryKind = "message"
)

// Delivery is the transport-neutral description of how a handshake result
// reaches the partner site. The boundary decides the mechanics (HTTP redirect
// vs. postMessage script); this core only states the intent.
type Delivery struct {
	Kind DeliveryKind `json:"kind"`
	// URL is set for DeliveryRedirect.
	URL string `json:"url,omitempty"`
	// TargetOrigin and Payload are set for DeliveryMessage.
	TargetOrigin string          `json:"targetOrigin,omitempty"`
	Payload      *MessagePayload `json:"payload,omitempty"`
}

// MessagePayload is the body of a cross-window login message.
type MessagePayload struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user"`
	Token   string       `json:"token"`
}

// LoginResult is the orchestrator's answer to a successful credential
// exchange: the authenticated user, the minted bearer token, and how to
// deliver them.
type LoginResult struct {
	User     *models.User
	Token    string
	Delivery Delivery
}

// LogoutResult carries the optional post-logout redirect.
type LogoutResult struct {
	RedirectURL string
}

// VerifyResult is the decoded identity behind a live token.
type VerifyResult struct {
	User      *models.User
	ExpiresAt int64
}

// StatusResult answers the read-only login status check. A missing or dead
// token is not an error, just IsLoggedIn=false.
type StatusResult struct {
	IsLoggedIn bool
	User       *models.User
}
