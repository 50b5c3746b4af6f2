package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/oauth2"

	"github.com/lacs-cc/auth-gateway/internal/models"
)

// Client talks to the identity provider over HTTP. Sign-in uses the OAuth2
// resource-owner password grant; the access token the provider returns is a
// JWT carrying the user's subject id and profile claims.
type Client struct {
	baseURL string
	oauth   *oauth2.Config
	http    *http.Client
}

// NewClient creates an identity provider client for the given base URL.
func NewClient(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		baseURL: baseURL,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  baseURL + "/oauth2/authorize",
				TokenURL: baseURL + "/oauth2/token",
			},
		},
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// SignIn exchanges email/password for the authenticated user via the password
// grant. Any 4xx from the token endpoint maps to ErrInvalidCredentials; the
// provider's distinction between unknown user and wrong password is dropped.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	tok, err := c.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) &&
			retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("identity provider token exchange failed: %w", err)
	}

	user, err := userFromAccessToken(tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("identity provider returned an unusable token: %w", err)
	}
	return user, nil
}

// SignOut revokes the provider-side session. An empty token is still sent to
// let the provider clear any cookie-bound session it manages.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/logout", nil)
	if err != nil {
		return fmt.Errorf("failed to build sign-out request: %w", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider sign-out failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("identity provider sign-out returned status %d", resp.StatusCode)
	}
	return nil
}

// GetUser resolves an access token via the provider's userinfo endpoint.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/oauth2/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider userinfo failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity provider userinfo returned status %d", resp.StatusCode)
	}

	var body struct {
		Sub       string  `json:"sub"`
		Email     string  `json:"email"`
		Username  string  `json:"username"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	if body.Sub == "" {
		return nil, fmt.Errorf("userinfo response missing subject")
	}

	return &models.User{
		ID:       body.Sub,
		Email:    body.Email,
		Username: body.Username,
		Avatar:   body.AvatarURL,
	}, nil
}

// userFromAccessToken extracts the user from the provider's JWT access token.
// The token is parsed without signature verification: it arrived over the
// provider's own TLS channel in direct response to a credential exchange, so
// the transport, not the signature, is the trust root here.
func userFromAccessToken(raw string) (*models.User, error) {
	tok, err := jwt.ParseInsecure([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	if tok.Subject() == "" {
		return nil, fmt.Errorf("access token missing subject")
	}

	user := &models.User{ID: tok.Subject()}
	if v, ok := tok.Get("email"); ok {
		if email, ok := v.(string); ok {
			user.Email = email
		}
	}
	if v, ok := tok.Get("username"); ok {
		if username, ok := v.(string); ok {
			user.Username = username
		}
	}
	if v, ok := tok.Get("avatar_url"); ok {
		if avatar, ok := v.(string); ok && avatar != "" {
			user.Avatar = &avatar
		}
	}
	return user, nil
}
