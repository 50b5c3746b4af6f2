// Package queue carries security audit events from the API server to the
// audit worker over RabbitMQ.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

const (
	// EventLoginSucceeded records a successful cross-domain login.
	EventLoginSucceeded EventType = "login_succeeded"
	// EventLoginFailed records a rejected credential exchange.
	EventLoginFailed EventType = "login_failed"
	// EventLogout records a sign-out.
	EventLogout EventType = "logout"
	// EventOriginRejected records a request from an origin outside the allow-list.
	EventOriginRejected EventType = "origin_rejected"
	// EventInviteAllocated records the creation of a new invite code.
	EventInviteAllocated EventType = "invite_allocated"
	// EventInviteRedeemed records an invite code being consumed.
	EventInviteRedeemed EventType = "invite_redeemed"
)

// Event is one security audit record. Subject is the identity provider's
// subject id when known; Email and Origin are filled from the request that
// triggered the event.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Type      EventType         `json:"type"`
	Subject   string            `json:"subject,omitempty"`
	Email     string            `json:"email,omitempty"`
	Origin    string            `json:"origin,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewEvent creates an audit event of the given type.
func NewEvent(eventType EventType) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}
}
