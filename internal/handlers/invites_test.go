package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lacs-cc/auth-gateway/internal/database"
	"github.com/lacs-cc/auth-gateway/internal/invites"
	"github.com/lacs-cc/auth-gateway/internal/models"
	"github.com/lacs-cc/auth-gateway/internal/request"
)

type memStore struct {
	mu     sync.Mutex
	codes  map[string]*models.InviteCode
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{codes: make(map[string]*models.InviteCode)}
}

func (s *memStore) Create(ctx context.Context, code, createdBy string) (*models.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.codes[code]; exists {
		return nil, database.ErrCodeExists
	}
	s.nextID++
	ic := &models.InviteCode{
		ID:        s.nextID,
		Code:      code,
		CreatedAt: time.Now(),
		CreatedBy: &createdBy,
	}
	s.codes[code] = ic
	return ic, nil
}

func (s *memStore) GetByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ic, ok := s.codes[code]
	if !ok {
		return nil, database.ErrCodeNotFound
	}
	clone := *ic
	return &clone, nil
}

func (s *memStore) ListByCreator(ctx context.Context, createdBy string) ([]*models.InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.InviteCode
	for _, ic := range s.codes {
		if ic.CreatedBy != nil && *ic.CreatedBy == createdBy {
			clone := *ic
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *memStore) MarkUsed(ctx context.Context, code, usedByEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ic, ok := s.codes[code]
	if !ok || ic.IsUsed {
		return database.ErrCodeNotRedeemable
	}
	now := time.Now()
	ic.IsUsed = true
	ic.UsedAt = &now
	ic.UsedByEmail = &usedByEmail
	return nil
}

// asUser injects an authenticated user the way the bearer-token middleware
// would.
func asUser(user *models.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(request.WithUser(r.Context(), user)))
		})
	}
}

func newInviteRouter(t *testing.T, store database.InviteCodeStore, user *models.User) *mux.Router {
	t.Helper()
	svc := invites.NewService(store, zap.NewNop())
	r := mux.NewRouter()
	authed := asUser(user)
	if user == nil {
		authed = func(next http.Handler) http.Handler { return next }
	}
	NewInviteHandler(svc, zap.NewNop()).RegisterRoutes(r, authed)
	return r
}

func TestAllocateEndpoint(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	user := &models.User{ID: "u1", Username: "ada", Email: "ada@example.com"}
	router := newInviteRouter(t, store, user)

	req := httptest.NewRequest(http.MethodPost, "/invite-codes", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// Registration clients read "code" as the bare 6-character string.
	var resp struct {
		Success    bool               `json:"success"`
		Code       string             `json:"code"`
		InviteCode *models.InviteCode `json:"inviteCode"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success || resp.InviteCode == nil {
		t.Fatalf("response = %s", rr.Body.String())
	}
	if !invites.IsValidFormat(resp.Code) {
		t.Errorf("allocated code %q is not six uppercase alphanumerics", resp.Code)
	}
	if resp.InviteCode.Code != resp.Code {
		t.Errorf("inviteCode.code = %q, want %q", resp.InviteCode.Code, resp.Code)
	}
	if resp.InviteCode.CreatedBy == nil || *resp.InviteCode.CreatedBy != user.Email {
		t.Errorf("code attributed to %v, want %q", resp.InviteCode.CreatedBy, user.Email)
	}
}

func TestAllocateRequiresAuth(t *testing.T) {
	t.Parallel()

	router := newInviteRouter(t, newMemStore(), nil)

	req := httptest.NewRequest(http.MethodPost, "/invite-codes", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestListEndpoint(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	user := &models.User{ID: "u1", Email: "ada@example.com"}
	if _, err := store.Create(context.Background(), "AAAAAA", user.Email); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Create(context.Background(), "BBBBBB", "other@example.com"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	router := newInviteRouter(t, store, user)

	req := httptest.NewRequest(http.MethodGet, "/invite-codes", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		InviteCodes []*models.InviteCode `json:"inviteCodes"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.InviteCodes) != 1 || resp.InviteCodes[0].Code != "AAAAAA" {
		t.Errorf("inviteCodes = %+v, want just AAAAAA", resp.InviteCodes)
	}
}

func postJSON(t *testing.T, router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCheckValidEndpoint(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	if _, err := store.Create(context.Background(), "GOODIE", "admin@example.com"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	router := newInviteRouter(t, store, nil)

	tests := []struct {
		name        string
		body        map[string]any
		wantStatus  int
		wantValid   bool
		wantMessage string
	}{
		{"valid code", map[string]any{"code": "GOODIE"}, http.StatusOK, true, ""},
		{"lowercase normalized", map[string]any{"code": " goodie "}, http.StatusOK, true, ""},
		{"unknown code", map[string]any{"code": "NOSUCH"}, http.StatusOK, false, ""},
		{"bad format", map[string]any{"code": "ab!"}, http.StatusOK, false, ""},
		{"missing code", map[string]any{}, http.StatusBadRequest, false, invites.MsgCodeRequired},
		{"blank code", map[string]any{"code": "   "}, http.StatusBadRequest, false, invites.MsgCodeRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, router, http.MethodPost, "/invite-codes/validate", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			// Every branch of this endpoint, the 400 included, answers in
			// the {isValid, message} shape.
			var resp invites.Validation
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.IsValid != tt.wantValid {
				t.Errorf("isValid = %v, want %v (message %q)", resp.IsValid, tt.wantValid, resp.Message)
			}
			if tt.wantMessage != "" && resp.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMessage)
			}
		})
	}
}

func TestConsumeEndpoint(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	if _, err := store.Create(context.Background(), "GOODIE", "admin@example.com"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	router := newInviteRouter(t, store, nil)

	rr := postJSON(t, router, http.MethodPut, "/invite-codes/validate", map[string]any{
		"code": "goodie", "userEmail": "new@example.com",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("first consume status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// Second redemption loses.
	rr = postJSON(t, router, http.MethodPut, "/invite-codes/validate", map[string]any{
		"code": "GOODIE", "userEmail": "late@example.com",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("second consume status = %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = postJSON(t, router, http.MethodPut, "/invite-codes/validate", map[string]any{
		"code": "GOODIE",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing email status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	ic, err := store.GetByCode(context.Background(), "GOODIE")
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if ic.UsedByEmail == nil || *ic.UsedByEmail != "new@example.com" {
		t.Errorf("usedByEmail = %v, want new@example.com", ic.UsedByEmail)
	}
}
