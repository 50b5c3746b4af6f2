package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lacs-cc/auth-gateway/internal/database"
	"github.com/lacs-cc/auth-gateway/internal/invites"
	"github.com/lacs-cc/auth-gateway/internal/queue"
	"github.com/lacs-cc/auth-gateway/internal/request"
	"github.com/lacs-cc/auth-gateway/internal/validation"
)

// InviteHandler serves the first-party invite-code API. Allocation and
// listing require an authenticated user in the request context; validation
// and consumption are open to the registration flow.
type InviteHandler struct {
	svc    *invites.Service
	events queue.EventQueue
	logger *zap.Logger
}

// InviteOption configures an InviteHandler.
type InviteOption func(*InviteHandler)

// WithInviteEvents enables audit event publishing.
func WithInviteEvents(q queue.EventQueue) InviteOption {
	return func(h *InviteHandler) {
		h.events = q
	}
}

// NewInviteHandler creates an InviteHandler.
func NewInviteHandler(svc *invites.Service, logger *zap.Logger, opts ...InviteOption) *InviteHandler {
	h := &InviteHandler{svc: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// audit publishes an invite event if the stream is configured. Failures are
// logged and swallowed.
func (h *InviteHandler) audit(r *http.Request, eventType queue.EventType, code, email string) {
	if h.events == nil {
		return
	}
	ev := queue.NewEvent(eventType)
	ev.Email = email
	ev.ClientIP = request.ClientIP(r)
	ev.Metadata["code"] = code

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.events.Publish(ctx, ev); err != nil {
		h.logger.Warn("audit_event_publish_failed",
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}

// RegisterRoutes registers the invite-code routes. authed must wrap handlers
// with the bearer-token middleware before registration reaches this router.
func (h *InviteHandler) RegisterRoutes(r *mux.Router, authed func(http.Handler) http.Handler) {
	r.Handle("/invite-codes", authed(http.HandlerFunc(h.Allocate))).Methods("POST")
	r.Handle("/invite-codes", authed(http.HandlerFunc(h.List))).Methods("GET")
	r.HandleFunc("/invite-codes/validate", h.CheckValid).Methods("POST")
	r.HandleFunc("/invite-codes/validate", h.Consume).Methods("PUT")
}

// Allocate mints a fresh invite code for the authenticated caller.
func (h *InviteHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	user, ok := request.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	code, err := h.svc.Allocate(r.Context(), user.Email)
	if err != nil {
		h.logger.Error("invite_code_allocation_failed",
			zap.String("requested_by", user.Email),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "failed to create invite code")
		return
	}

	h.audit(r, queue.EventInviteAllocated, code.Code, user.Email)

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"code":       code.Code,
		"inviteCode": code,
	})
}

// List returns the codes the authenticated caller has allocated, newest
// first.
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := request.UserFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	codes, err := h.svc.ListByCreator(r.Context(), user.Email)
	if err != nil {
		h.logger.Error("invite_code_list_failed",
			zap.String("created_by", user.Email),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "failed to list invite codes")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"inviteCodes": codes,
	})
}

type checkRequest struct {
	Code string `json:"code"`
}

// CheckValid reports whether a code could be redeemed, without consuming it.
func (h *InviteHandler) CheckValid(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if invites.Normalize(req.Code) == "" {
		respondJSON(w, http.StatusBadRequest, &invites.Validation{
			IsValid: false,
			Message: invites.MsgCodeRequired,
		})
		return
	}

	result, err := h.svc.CheckValid(r.Context(), req.Code)
	if err != nil {
		h.logger.Error("invite_code_check_failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to validate invite code")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type consumeRequest struct {
	Code      string `json:"code" validate:"required,invite_code"`
	UserEmail string `json:"userEmail" validate:"required,email"`
}

// Consume redeems a code for the given account. Exactly one caller can win
// a given code; losers get a 409.
func (h *InviteHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "code and userEmail are required")
		return
	}

	err := h.svc.Consume(r.Context(), req.Code, req.UserEmail)
	switch {
	case err == nil:
		h.audit(r, queue.EventInviteRedeemed, invites.Normalize(req.Code), req.UserEmail)
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "invite code marked as used",
		})
	case errors.Is(err, invites.ErrBadFormat):
		respondError(w, http.StatusBadRequest, "invite code must be 6 letters or digits")
	case errors.Is(err, database.ErrCodeNotRedeemable):
		respondError(w, http.StatusConflict, "invite code has already been used or does not exist")
	default:
		h.logger.Error("invite_code_consume_failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to use invite code")
	}
}
