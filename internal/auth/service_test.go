package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"go.uber.org/zap"

	"github.com/lacs-cc/auth-gateway/internal/identity"
	"github.com/lacs-cc/auth-gateway/internal/models"
	"github.com/lacs-cc/auth-gateway/internal/origin"
	"github.com/lacs-cc/auth-gateway/internal/token"
)

type fakeProvider struct {
	users      map[string]string // email -> password
	signOutErr error
	signedOut  bool
}

func (f *fakeProvider) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	want, ok := f.users[email]
	if !ok || want != password {
		return nil, identity.ErrInvalidCredentials
	}
	return &models.User{ID: "sub-" + models.EmailLocalPart(email), Email: email}, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, accessToken string) error {
	f.signedOut = true
	return f.signOutErr
}

func (f *fakeProvider) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	return nil, identity.ErrInvalidCredentials
}

type fakeProfiles struct {
	profiles map[string]*models.Profile
	err      error
}

func (f *fakeProfiles) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[id], nil
}

func newTestService(provider *fakeProvider, profiles *fakeProfiles) *Service {
	if provider == nil {
		provider = &fakeProvider{users: map[string]string{"alice@example.com": "hunter2"}}
	}
	if profiles == nil {
		profiles = &fakeProfiles{profiles: map[string]*models.Profile{}}
	}
	v := origin.NewValidator([]string{"http://localhost:3000", "https://app.lacs.cc"})
	return NewService(v, provider, token.NewCodec(), profiles, zap.NewNop())
}

func TestLoginRedirectDelivery(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, nil)
	result, err := svc.Login(context.Background(), "alice@example.com", "hunter2",
		"https://partner.example/cb?keep=1&loginSuccess=stale", "https://app.lacs.cc")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if result.Delivery.Kind != DeliveryRedirect {
		t.Fatalf("Delivery.Kind = %q, want redirect", result.Delivery.Kind)
	}

	u, err := url.Parse(result.Delivery.URL)
	if err != nil {
		t.Fatalf("parse redirect URL: %v", err)
	}
	q := u.Query()

	if got := q.Get("loginSuccess"); got != "true" {
		t.Errorf("loginSuccess = %q, want true (replacing the stale value)", got)
	}
	if got := q.Get("keep"); got != "1" {
		t.Errorf("keep = %q, want 1 (existing params preserved)", got)
	}

	// The authToken parameter must decode back to the authenticated identity.
	payload := token.NewCodec().Parse(q.Get("authToken"))
	if payload == nil {
		t.Fatal("authToken in redirect URL did not parse")
	}
	if payload.Email != "alice@example.com" {
		t.Errorf("token email = %q, want alice@example.com", payload.Email)
	}
	if payload.Username != "alice" {
		t.Errorf("token username = %q, want alice (derived from email)", payload.Username)
	}

	// userInfo is URL-encoded JSON of the identity.
	userInfoJSON, err := url.QueryUnescape(q.Get("userInfo"))
	if err != nil {
		t.Fatalf("unescape userInfo: %v", err)
	}
	var info models.User
	if err := json.Unmarshal([]byte(userInfoJSON), &info); err != nil {
		t.Fatalf("decode userInfo JSON %q: %v", userInfoJSON, err)
	}
	if info.ID != "sub-alice" || info.Username != "alice" || info.Email != "alice@example.com" {
		t.Errorf("userInfo = %+v, want the authenticated identity", info)
	}
}

func TestLoginMessageDelivery(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, nil)
	result, err := svc.Login(context.Background(), "alice@example.com", "hunter2", "", "https://app.lacs.cc")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	d := result.Delivery
	if d.Kind != DeliveryMessage {
		t.Fatalf("Delivery.Kind = %q, want message", d.Kind)
	}
	if d.TargetOrigin != "https://app.lacs.cc" {
		t.Errorf("TargetOrigin = %q, want the verified origin", d.TargetOrigin)
	}
	if d.Payload == nil || !d.Payload.Success || d.Payload.Token != result.Token {
		t.Errorf("message payload = %+v, want success with the minted token", d.Payload)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, nil)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "unknown user", email: "nobody@example.com", password: "hunter2"},
		{name: "wrong password", email: "alice@example.com", password: "wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Login(context.Background(), tt.email, tt.password, "", "https://app.lacs.cc")
			// Both cases must collapse into the same error.
			if !errors.Is(err, identity.ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestLoginRejectsRelativeReturnURL(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, nil)
	_, err := svc.Login(context.Background(), "alice@example.com", "hunter2", "/relative/path", "https://app.lacs.cc")
	if err == nil {
		t.Error("expected an error for a non-absolute return URL")
	}
}

func TestLogout(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{users: map[string]string{}}
	svc := newTestService(provider, nil)

	result, err := svc.Logout(context.Background(), "some-token", "https://partner.example/bye")
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !provider.signedOut {
		t.Error("expected provider sign-out to be called")
	}

	u, err := url.Parse(result.RedirectURL)
	if err != nil {
		t.Fatalf("parse redirect URL: %v", err)
	}
	if u.Query().Get("logoutSuccess") != "true" {
		t.Errorf("redirect URL %q missing logoutSuccess=true", result.RedirectURL)
	}

	noRedirect, err := svc.Logout(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Logout without returnUrl: %v", err)
	}
	if noRedirect.RedirectURL != "" {
		t.Errorf("RedirectURL = %q, want empty without returnUrl", noRedirect.RedirectURL)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, nil)
	codec := token.NewCodec()
	tok := codec.Issue(&models.User{ID: "sub-1", Username: "alice", Email: "alice@example.com"})

	result, err := svc.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.User.ID != "sub-1" || result.User.Username != "alice" {
		t.Errorf("User = %+v, want the embedded identity", result.User)
	}
	if result.ExpiresAt == 0 {
		t.Error("expected ExpiresAt to be set")
	}

	if _, err := svc.Verify("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Verify(garbage) err = %v, want ErrTokenInvalid", err)
	}
}

func TestGetUserInfo(t *testing.T) {
	t.Parallel()

	avatar := "https://cdn.example/alice.png"
	codec := token.NewCodec()
	tok := codec.Issue(&models.User{ID: "sub-1", Username: "alice", Email: "alice@example.com"})

	t.Run("profile enriches avatar", func(t *testing.T) {
		t.Parallel()
		profiles := &fakeProfiles{profiles: map[string]*models.Profile{
			"sub-1": {ID: "sub-1", AvatarURL: &avatar},
		}}
		svc := newTestService(nil, profiles)

		user, err := svc.GetUserInfo(context.Background(), tok)
		if err != nil {
			t.Fatalf("GetUserInfo: %v", err)
		}
		if user.Avatar == nil || *user.Avatar != avatar {
			t.Errorf("Avatar = %v, want %q", user.Avatar, avatar)
		}
	})

	t.Run("missing profile degrades gracefully", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(nil, &fakeProfiles{profiles: map[string]*models.Profile{}})

		user, err := svc.GetUserInfo(context.Background(), tok)
		if err != nil {
			t.Fatalf("GetUserInfo: %v", err)
		}
		if user.Avatar != nil {
			t.Errorf("Avatar = %v, want nil without a profile", user.Avatar)
		}
		if user.ID != "sub-1" {
			t.Errorf("ID = %q, want sub-1", user.ID)
		}
	})

	t.Run("profile store failure degrades gracefully", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(nil, &fakeProfiles{err: errors.New("db gone")})

		user, err := svc.GetUserInfo(context.Background(), tok)
		if err != nil {
			t.Fatalf("GetUserInfo: %v", err)
		}
		if user.ID != "sub-1" {
			t.Errorf("ID = %q, want sub-1", user.ID)
		}
	})

	t.Run("dead token fails", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(nil, nil)
		if _, err := svc.GetUserInfo(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("err = %v, want ErrTokenInvalid", err)
		}
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, nil)
	codec := token.NewCodec()
	tok := codec.Issue(&models.User{ID: "sub-1", Email: "alice@example.com"})

	if got := svc.Status(tok); !got.IsLoggedIn || got.User == nil || got.User.ID != "sub-1" {
		t.Errorf("Status(live token) = %+v, want logged in as sub-1", got)
	}
	if got := svc.Status(""); got.IsLoggedIn || got.User != nil {
		t.Errorf("Status(empty) = %+v, want logged out", got)
	}
	if got := svc.Status("garbage"); got.IsLoggedIn {
		t.Errorf("Status(garbage) = %+v, want logged out", got)
	}
}
