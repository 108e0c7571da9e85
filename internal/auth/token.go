package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the signed-in identity.
type User struct {
	UID         string `yaml:"uid"`
	Email       string `yaml:"email"`
	DisplayName string `yaml:"display_name,omitempty"`
}

// Name returns a display name, falling back to the email's local part.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// Token is a short-lived ID token plus the refresh token that renews it.
type Token struct {
	IDToken      string    `yaml:"id_token"`
	RefreshToken string    `yaml:"refresh_token"`
	ExpiresAt    time.Time `yaml:"expires_at"`
	User         User      `yaml:"user"`
}

// Expiring reports whether the ID token expires within margin of now.
func (t *Token) Expiring(now time.Time, margin time.Duration) bool {
	if t == nil || t.IDToken == "" {
		return true
	}
	return !now.Add(margin).Before(t.ExpiresAt)
}

// idTokenClaims holds what the client reads from an ID token.
type idTokenClaims struct {
	Subject   string
	Email     string
	Name      string
	ExpiresAt time.Time
}

// parseIDToken reads claims without verifying the signature. The backend verifies
// the token; the client only needs its expiry and identity.
func parseIDToken(idToken string) (*idTokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("parse id token: %w", err)
	}

	out := &idTokenClaims{}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if out.Subject == "" {
		out.Subject, _ = claims["user_id"].(string)
	}
	out.Email, _ = claims["email"].(string)
	out.Name, _ = claims["name"].(string)
	return out, nil
}

// completeToken fills identity and expiry gaps from the ID token's claims.
// expiresIn is the provider's lifetime hint, used when the token has no exp claim.
func completeToken(tok *Token, expiresIn time.Duration, now time.Time) *Token {
	if claims, err := parseIDToken(tok.IDToken); err == nil {
		if tok.User.UID == "" {
			tok.User.UID = claims.Subject
		}
		if tok.User.Email == "" {
			tok.User.Email = claims.Email
		}
		if tok.User.DisplayName == "" {
			tok.User.DisplayName = claims.Name
		}
		if !claims.ExpiresAt.IsZero() {
			tok.ExpiresAt = claims.ExpiresAt
		}
	}
	if tok.ExpiresAt.IsZero() && expiresIn > 0 {
		tok.ExpiresAt = now.Add(expiresIn)
	}
	return tok
}
