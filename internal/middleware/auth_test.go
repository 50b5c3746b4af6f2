package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/lacs-cc/auth-gateway/internal/models"
	"github.com/lacs-cc/auth-gateway/internal/request"
)

type fakeProvider struct {
	user *models.User
	err  error
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	return p.user, p.err
}

func (p *fakeProvider) SignOut(ctx context.Context, accessToken string) error { return nil }

func (p *fakeProvider) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	return p.user, p.err
}

func TestAuth(t *testing.T) {
	t.Parallel()

	user := &models.User{ID: "u1", Email: "ada@example.com"}

	tests := []struct {
		name       string
		authHeader string
		provider   *fakeProvider
		wantStatus int
		wantUser   bool
	}{
		{
			name:       "valid bearer token",
			authHeader: "Bearer good-token",
			provider:   &fakeProvider{user: user},
			wantStatus: http.StatusOK,
			wantUser:   true,
		},
		{
			name:       "missing header",
			authHeader: "",
			provider:   &fakeProvider{user: user},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			authHeader: "Basic dXNlcjpwdw==",
			provider:   &fakeProvider{user: user},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "provider rejects token",
			authHeader: "Bearer stale-token",
			provider:   &fakeProvider{err: errors.New("token expired")},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotUser *models.User
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = request.UserFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/invite-codes", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			Auth(tt.provider, zap.NewNop())(next).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantUser && (gotUser == nil || gotUser.ID != user.ID) {
				t.Errorf("context user = %+v, want %+v", gotUser, user)
			}
			if !tt.wantUser && gotUser != nil {
				t.Errorf("context user = %+v, want nil", gotUser)
			}
		})
	}
}
