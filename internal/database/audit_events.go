package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lacs-cc/auth-gateway/internal/queue"
)

// AuditEventRepository persists security audit events consumed from the
// event queue.
type AuditEventRepository struct {
	db *DB
}

// NewAuditEventRepository creates a new audit event repository.
func NewAuditEventRepository(db *DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

// Insert stores one audit event. Inserts are idempotent on the event id so a
// redelivered message does not produce a duplicate row.
func (r *AuditEventRepository) Insert(ctx context.Context, ev *queue.Event) error {
	metadataJSON, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, event_type, subject, email, origin, client_ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.db.ExecContext(ctx, query,
		ev.ID,
		ev.Type,
		ev.Subject,
		ev.Email,
		ev.Origin,
		ev.ClientIP,
		metadataJSON,
		ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}
