package invites

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lacs-cc/auth-gateway/internal/database"
	"github.com/lacs-cc/auth-gateway/internal/models"
)

var (
	// ErrExhaustedRetries reports that allocation gave up after the attempt
	// cap. This is a transient collision problem, not a client error.
	ErrExhaustedRetries = errors.New("failed to allocate a unique invite code")

	// ErrBadFormat reports that a code failed format validation.
	ErrBadFormat = errors.New("invite code format is invalid")
)

// maxAllocationAttempts caps how many candidates Allocate tries before
// giving up with ErrExhaustedRetries.
const maxAllocationAttempts = 10

// User-facing validation messages, one per failure mode. MsgCodeRequired is
// exported because the HTTP boundary answers empty input itself, with a 400.
const (
	MsgCodeRequired  = "invite code is required"
	msgCodeBadFormat = "invite code must be 6 letters or digits"
	msgCodeNotFound  = "invite code not found"
	msgCodeUsed      = "invite code has already been used"
	msgCodeValid     = "invite code is valid"
)

// Validation is the outcome of checking an invite code without consuming it.
type Validation struct {
	IsValid bool               `json:"isValid"`
	Message string             `json:"message"`
	Code    *models.InviteCode `json:"code,omitempty"`
}

// Service allocates and redeems invite codes on top of the record store.
// It holds no in-process state: uniqueness and exactly-once redemption rest
// entirely on the store's unique index and conditional update.
type Service struct {
	store    database.InviteCodeStore
	logger   *zap.Logger
	generate func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithCodeGenerator replaces the random candidate generator, for tests.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		s.generate = gen
	}
}

// NewService creates a new invite code service.
func NewService(store database.InviteCodeStore, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		logger:   logger,
		generate: generateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allocate reserves a fresh unique invite code for requestedBy.
//
// Each attempt draws a candidate, pre-checks existence, and inserts. The
// pre-check is only an optimization: two allocators can still pick the same
// candidate concurrently, so the store's unique index is the authority, and a
// tagged ErrCodeExists from the insert counts as a collision and triggers a
// retry just like a pre-check hit. After maxAllocationAttempts collisions the
// call fails with ErrExhaustedRetries.
func (s *Service) Allocate(ctx context.Context, requestedBy string) (*models.InviteCode, error) {
	for attempt := 1; attempt <= maxAllocationAttempts; attempt++ {
		candidate, err := s.generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate candidate: %w", err)
		}

		_, err = s.store.GetByCode(ctx, candidate)
		if err == nil {
			// Candidate taken, try the next one.
			continue
		}
		if !errors.Is(err, database.ErrCodeNotFound) {
			return nil, fmt.Errorf("failed to check candidate: %w", err)
		}

		ic, err := s.store.Create(ctx, candidate, requestedBy)
		if errors.Is(err, database.ErrCodeExists) {
			// Lost the race against a concurrent allocator.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to reserve invite code: %w", err)
		}

		s.logger.Info("invite_code_allocated",
			zap.String("code", ic.Code),
			zap.String("created_by", requestedBy),
			zap.Int("attempts", attempt),
		)
		return ic, nil
	}

	s.logger.Warn("invite_code_allocation_exhausted",
		zap.String("created_by", requestedBy),
		zap.Int("max_attempts", maxAllocationAttempts),
	)
	return nil, ErrExhaustedRetries
}

// CheckValid validates an invite code without consuming it. The returned
// Validation carries a distinct message for each failure mode; the error
// return is reserved for store failures.
func (s *Service) CheckValid(ctx context.Context, raw string) (*Validation, error) {
	code := Normalize(raw)
	if code == "" {
		return &Validation{IsValid: false, Message: MsgCodeRequired}, nil
	}
	if !IsValidFormat(code) {
		return &Validation{IsValid: false, Message: msgCodeBadFormat}, nil
	}

	ic, err := s.store.GetByCode(ctx, code)
	if errors.Is(err, database.ErrCodeNotFound) {
		return &Validation{IsValid: false, Message: msgCodeNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up invite code: %w", err)
	}

	if ic.IsUsed {
		return &Validation{IsValid: false, Message: msgCodeUsed}, nil
	}

	return &Validation{IsValid: true, Message: msgCodeValid, Code: ic}, nil
}

// Consume marks an invite code as used by usedByEmail, exactly once. The
// store's conditional update is the sole concurrency guard: of two
// simultaneous redemptions, one succeeds and the other gets
// database.ErrCodeNotRedeemable.
func (s *Service) Consume(ctx context.Context, raw string, usedByEmail string) error {
	code := Normalize(raw)
	if !IsValidFormat(code) {
		return ErrBadFormat
	}

	if err := s.store.MarkUsed(ctx, code, usedByEmail); err != nil {
		if errors.Is(err, database.ErrCodeNotRedeemable) {
			return err
		}
		return fmt.Errorf("failed to consume invite code: %w", err)
	}

	s.logger.Info("invite_code_redeemed",
		zap.String("code", code),
		zap.String("used_by", usedByEmail),
	)
	return nil
}

// ListByCreator returns the codes issued by a user, newest first.
func (s *Service) ListByCreator(ctx context.Context, createdBy string) ([]*models.InviteCode, error) {
	codes, err := s.store.ListByCreator(ctx, createdBy)
	if err != nil {
		return nil, fmt.Errorf("failed to list invite codes: %w", err)
	}
	return codes, nil
}
