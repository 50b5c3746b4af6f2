// Package workers holds the background consumers run by the worker binary.
package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lacs-cc/auth-gateway/internal/queue"
)

// EventSink persists audit events. Satisfied by database.AuditEventRepository.
type EventSink interface {
	Insert(ctx context.Context, ev *queue.Event) error
}

// Auditor drains the audit event stream into the database.
type Auditor struct {
	events queue.EventQueue
	sink   EventSink
	logger *zap.Logger

	prefetchCount int
}

// NewAuditor creates an auditor.
func NewAuditor(events queue.EventQueue, sink EventSink, logger *zap.Logger) *Auditor {
	return &Auditor{
		events:        events,
		sink:          sink,
		logger:        logger,
		prefetchCount: 10,
	}
}

// Run consumes events until the context is cancelled. Persisted events are
// acked; insert failures are nacked with requeue so another delivery can
// retry them. The insert is idempotent on event ID, so a redelivered event
// that already landed is acked as a duplicate rather than retried forever.
func (a *Auditor) Run(ctx context.Context) error {
	messages, errs, err := a.events.Consume(ctx, a.prefetchCount)
	if err != nil {
		return fmt.Errorf("failed to start consuming audit events: %w", err)
	}

	a.logger.Info("audit_consumer_started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("audit_consumer_stopping")
			return ctx.Err()

		case consumeErr, ok := <-errs:
			if !ok {
				return nil
			}
			return fmt.Errorf("audit event stream failed: %w", consumeErr)

		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			a.handle(ctx, msg)
		}
	}
}

func (a *Auditor) handle(ctx context.Context, msg *queue.Message) {
	if a.persist(ctx, msg.Event) {
		if err := msg.Ack(); err != nil {
			a.logger.Error("audit_event_ack_failed", zap.Error(err))
		}
		return
	}
	if err := msg.Nack(true); err != nil {
		a.logger.Error("audit_event_nack_failed", zap.Error(err))
	}
}

// persist writes the event and reports whether the delivery should be acked.
func (a *Auditor) persist(ctx context.Context, ev *queue.Event) bool {
	if err := a.sink.Insert(ctx, ev); err != nil {
		a.logger.Error("audit_event_persist_failed",
			zap.String("event_id", ev.ID.String()),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err),
		)
		return false
	}

	a.logger.Debug("audit_event_persisted",
		zap.String("event_id", ev.ID.String()),
		zap.String("event_type", string(ev.Type)),
	)
	return true
}
