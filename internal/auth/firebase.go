package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Provider is the identity provider behind a Session.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Token, error)
	SignUp(ctx context.Context, email, password string) (*Token, error)
	// SignInWithIdP exchanges a federated provider's ID token for a session token.
	SignInWithIdP(ctx context.Context, providerID, idToken string) (*Token, error)
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

const (
	defaultIdentityURL = "https://identitytoolkit.googleapis.com/v1"
	defaultTokenURL    = "https://securetoken.googleapis.com/v1"
)

// FirebaseProvider talks to the Firebase Identity Toolkit REST API.
type FirebaseProvider struct {
	apiKey      string
	identityURL string
	tokenURL    string
	httpClient  *http.Client
	now         func() time.Time
}

// FirebaseOption customizes a FirebaseProvider.
type FirebaseOption func(p *FirebaseProvider)

// WithEndpoints overrides the Identity Toolkit and Secure Token base URLs.
func WithEndpoints(identityURL, tokenURL string) FirebaseOption {
	return func(p *FirebaseProvider) {
		if identityURL != "" {
			p.identityURL = strings.TrimRight(identityURL, "/")
		}
		if tokenURL != "" {
			p.tokenURL = strings.TrimRight(tokenURL, "/")
		}
	}
}

// WithProviderHTTPClient supplies a custom HTTP client.
func WithProviderHTTPClient(hc *http.Client) FirebaseOption {
	return func(p *FirebaseProvider) {
		if hc != nil {
			p.httpClient = hc
		}
	}
}

// NewFirebaseProvider creates a provider for the project identified by apiKey.
func NewFirebaseProvider(apiKey string, opts ...FirebaseOption) *FirebaseProvider {
	p := &FirebaseProvider{
		apiKey:      apiKey,
		identityURL: defaultIdentityURL,
		tokenURL:    defaultTokenURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// signInResponse is shared by signInWithPassword, signUp and signInWithIdp.
type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
}

func (r *signInResponse) token(now time.Time) *Token {
	tok := &Token{
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		User: User{
			UID:         r.LocalID,
			Email:       r.Email,
			DisplayName: r.DisplayName,
		},
	}
	return completeToken(tok, parseSeconds(r.ExpiresIn), now)
}

// SignInWithPassword signs in an existing email/password account.
func (p *FirebaseProvider) SignInWithPassword(ctx context.Context, email, password string) (*Token, error) {
	var resp signInResponse
	err := p.postJSON(ctx, p.identityURL+"/accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.token(p.now()), nil
}

// SignUp creates an email/password account and signs it in.
func (p *FirebaseProvider) SignUp(ctx context.Context, email, password string) (*Token, error) {
	var resp signInResponse
	err := p.postJSON(ctx, p.identityURL+"/accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.token(p.now()), nil
}

// SignInWithIdP signs in with a federated provider's ID token (e.g. "google.com").
func (p *FirebaseProvider) SignInWithIdP(ctx context.Context, providerID, idToken string) (*Token, error) {
	postBody := url.Values{}
	postBody.Set("id_token", idToken)
	postBody.Set("providerId", providerID)

	var resp signInResponse
	err := p.postJSON(ctx, p.identityURL+"/accounts:signInWithIdp", map[string]any{
		"postBody":            postBody.Encode(),
		"requestUri":          "http://localhost",
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.token(p.now()), nil
}

// Refresh exchanges a refresh token for a new ID token.
func (p *FirebaseProvider) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.withKey(p.tokenURL+"/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := p.send(req, &resp); err != nil {
		return nil, err
	}

	tok := &Token{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		User:         User{UID: resp.UserID},
	}
	return completeToken(tok, parseSeconds(resp.ExpiresIn), p.now()), nil
}

func (p *FirebaseProvider) postJSON(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.withKey(endpoint), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.send(req, out)
}

func (p *FirebaseProvider) send(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return providerError(errResp.Error.Message)
		}
		return &ProviderError{Code: strconv.Itoa(resp.StatusCode), Message: fmt.Sprintf("identity provider error: %s", resp.Status)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (p *FirebaseProvider) withKey(endpoint string) string {
	return endpoint + "?key=" + url.QueryEscape(p.apiKey)
}

// parseSeconds parses the provider's "3600"-style lifetimes.
func parseSeconds(s string) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
