package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lacs-cc/auth-gateway/internal/auth"
	"github.com/lacs-cc/auth-gateway/internal/identity"
	"github.com/lacs-cc/auth-gateway/internal/queue"
	"github.com/lacs-cc/auth-gateway/internal/request"
	"github.com/lacs-cc/auth-gateway/internal/validation"
)

const (
	msgUnauthorizedOrigin = "unauthorized origin"
	msgInvalidAction      = "invalid action"
	msgInternalError      = "internal server error"
)

// CrossDomainHandler is the HTTP boundary of the handshake orchestrator.
//
// It owns the CORS headers for this endpoint itself instead of relying on
// middleware: the allowed origin must be echoed exactly, and the request body
// carries a second origin that is validated independently of the transport
// header before any state-changing action runs.
type CrossDomainHandler struct {
	svc    *auth.Service
	events queue.EventQueue
	logger *zap.Logger
}

// CrossDomainOption configures a CrossDomainHandler.
type CrossDomainOption func(*CrossDomainHandler)

// WithCrossDomainEvents enables audit event publishing.
func WithCrossDomainEvents(q queue.EventQueue) CrossDomainOption {
	return func(h *CrossDomainHandler) {
		h.events = q
	}
}

// NewCrossDomainHandler creates the cross-domain auth handler.
func NewCrossDomainHandler(svc *auth.Service, logger *zap.Logger, opts ...CrossDomainOption) *CrossDomainHandler {
	h := &CrossDomainHandler{svc: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the cross-domain auth routes on the given router.
func (h *CrossDomainHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/cross-domain-auth", h.Preflight).Methods("OPTIONS")
	r.HandleFunc("/cross-domain-auth", h.Authenticate).Methods("POST")
	r.HandleFunc("/cross-domain-auth", h.Status).Methods("GET")
}

// setCORSHeaders echoes the validated origin. Only call after the origin
// passed the allow-list check.
func setCORSHeaders(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// Preflight handles the CORS preflight. Disallowed origins get a bare 403
// with no CORS headers, so the browser blocks the real request.
func (h *CrossDomainHandler) Preflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !h.svc.ValidateOrigin(origin) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	setCORSHeaders(w, origin)
	w.WriteHeader(http.StatusOK)
}

// authRequest is the POST body. Origin is validated independently of the
// transport Origin header; ReturnURL and Token are action-specific.
type authRequest struct {
	Action    string `json:"action"`
	Origin    string `json:"origin"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	ReturnURL string `json:"returnUrl"`
	Token     string `json:"token"`
}

type loginCredentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Authenticate dispatches the handshake actions.
func (h *CrossDomainHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !h.svc.ValidateOrigin(origin) {
		h.auditOriginRejected(r, origin)
		respondError(w, http.StatusForbidden, msgUnauthorizedOrigin)
		return
	}

	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setCORSHeaders(w, origin)
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The origin inside the body must pass on its own; echoing CORS headers
	// for the (already allow-listed) transport origin is not a bypass.
	if !h.svc.ValidateOrigin(req.Origin) {
		h.auditOriginRejected(r, req.Origin)
		setCORSHeaders(w, origin)
		respondError(w, http.StatusForbidden, msgUnauthorizedOrigin)
		return
	}

	setCORSHeaders(w, origin)

	switch req.Action {
	case "login":
		h.handleLogin(w, r, &req)
	case "logout":
		h.handleLogout(w, r, &req)
	case "verify":
		h.handleVerify(w, r, &req)
	case "get_user_info":
		h.handleGetUserInfo(w, r, &req)
	default:
		respondError(w, http.StatusBadRequest, msgInvalidAction)
	}
}

func (h *CrossDomainHandler) handleLogin(w http.ResponseWriter, r *http.Request, req *authRequest) {
	email := validation.SanitizeText(req.Email)
	creds := loginCredentials{Email: email, Password: req.Password}
	if err := validation.Validate.Struct(creds); err != nil {
		// Same generic answer as a failed exchange; a malformed email is not
		// worth a distinct, enumerable response.
		respondError(w, http.StatusUnauthorized, identity.ErrInvalidCredentials.Error())
		return
	}

	result, err := h.svc.Login(r.Context(), email, req.Password, req.ReturnURL, req.Origin)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.audit(r, queue.EventLoginFailed, func(ev *queue.Event) {
				ev.Email = email
				ev.Origin = req.Origin
			})
			respondError(w, http.StatusUnauthorized, identity.ErrInvalidCredentials.Error())
			return
		}
		h.logger.Error("login_upstream_failure", zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	h.audit(r, queue.EventLoginSucceeded, func(ev *queue.Event) {
		ev.Subject = result.User.ID
		ev.Email = result.User.Email
		ev.Origin = req.Origin
	})

	resp := map[string]any{
		"success":  true,
		"user":     result.User,
		"token":    result.Token,
		"delivery": result.Delivery,
	}
	if result.Delivery.Kind == auth.DeliveryRedirect {
		// Kept alongside the delivery object for callers that only look at
		// the top-level redirect.
		resp["redirectUrl"] = result.Delivery.URL
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CrossDomainHandler) handleLogout(w http.ResponseWriter, r *http.Request, req *authRequest) {
	result, err := h.svc.Logout(r.Context(), req.Token, req.ReturnURL)
	if err != nil {
		h.logger.Error("logout_upstream_failure", zap.Error(err))
		respondError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	h.audit(r, queue.EventLogout, func(ev *queue.Event) {
		ev.Origin = req.Origin
	})

	resp := map[string]any{"success": true}
	if result.RedirectURL != "" {
		resp["redirectUrl"] = result.RedirectURL
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CrossDomainHandler) handleVerify(w http.ResponseWriter, r *http.Request, req *authRequest) {
	result, err := h.svc.Verify(req.Token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, auth.ErrTokenInvalid.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"user":      result.User,
		"expiresAt": result.ExpiresAt,
	})
}

func (h *CrossDomainHandler) handleGetUserInfo(w http.ResponseWriter, r *http.Request, req *authRequest) {
	user, err := h.svc.GetUserInfo(r.Context(), req.Token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, auth.ErrTokenInvalid.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// Status is the read-only login status check. A missing token is not an
// error; the caller simply is not logged in.
func (h *CrossDomainHandler) Status(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !h.svc.ValidateOrigin(origin) {
		h.auditOriginRejected(r, origin)
		respondError(w, http.StatusForbidden, msgUnauthorizedOrigin)
		return
	}
	setCORSHeaders(w, origin)

	tok := r.URL.Query().Get("token")
	if tok == "" {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":    false,
			"isLoggedIn": false,
		})
		return
	}

	status := h.svc.Status(tok)
	resp := map[string]any{
		"success":    true,
		"isLoggedIn": status.IsLoggedIn,
	}
	if status.User != nil {
		resp["user"] = status.User
	} else {
		resp["user"] = nil
	}
	respondJSON(w, http.StatusOK, resp)
}

// audit publishes an event, ignoring failures beyond a log line. The event
// stream is an operator convenience and must never fail a user request.
func (h *CrossDomainHandler) audit(r *http.Request, eventType queue.EventType, fill func(*queue.Event)) {
	if h.events == nil {
		return
	}
	ev := queue.NewEvent(eventType)
	ev.ClientIP = request.ClientIP(r)
	if fill != nil {
		fill(ev)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.events.Publish(ctx, ev); err != nil {
		h.logger.Warn("audit_event_publish_failed",
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}

func (h *CrossDomainHandler) auditOriginRejected(r *http.Request, rejected string) {
	h.audit(r, queue.EventOriginRejected, func(ev *queue.Event) {
		ev.Origin = rejected
	})
}
