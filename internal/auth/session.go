// Package auth holds the process-wide identity state: the signed-in user, the
// short-lived bearer credential, and notifications when the user changes.
//
// # Capabilities
//
//   - CurrentUser: the signed-in user, or nil
//   - Credential: a bearer token, refreshed when close to expiry
//   - SignIn / SignUp: email and password
//   - SignInWithProvider: federated sign-in (Google)
//   - SignOut
//   - Subscribe: receives the new user (nil on sign-out) whenever it changes
//
// A Session is created once at startup, optionally restored from a
// CredentialStore, and lives for the whole process.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/notify"
)

// refreshMargin is how long before expiry a credential is renewed.
const refreshMargin = time.Minute

// Session is the identity state shared by the chat session and the conversation list.
// All methods are safe for concurrent use.
type Session struct {
	provider  Provider
	federated Federated
	store     CredentialStore
	collector *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.RWMutex
	token *Token

	refresh singleflight.Group
	changes *notify.Broadcaster[*User]
}

// SessionOption customizes a Session.
type SessionOption func(s *Session)

// WithFederated enables SignInWithProvider.
func WithFederated(f Federated) SessionOption {
	return func(s *Session) {
		s.federated = f
	}
}

// WithStore persists tokens across runs.
func WithStore(store CredentialStore) SessionOption {
	return func(s *Session) {
		s.store = store
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCollector records token refresh timings.
func WithCollector(c *metrics.Collector) SessionOption {
	return func(s *Session) {
		s.collector = c
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession creates a signed-out session backed by provider.
func NewSession(provider Provider, opts ...SessionOption) *Session {
	s := &Session{
		provider: provider,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "auth")
	s.changes = notify.New[*User]("user_changed", s.logger)
	return s
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Session) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil
	}
	u := s.token.User
	return &u
}

// Subscribe returns a channel receiving the new user (nil after sign-out) on every
// identity change. Token refreshes for the same user are not reported.
func (s *Session) Subscribe(ctx context.Context) (<-chan *User, string) {
	return s.changes.Subscribe(ctx)
}

// Credential returns a bearer token for the current user, or "" when signed out.
// Concurrent callers share a single refresh.
func (s *Session) Credential(ctx context.Context) (string, error) {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()

	if tok == nil {
		return "", nil
	}
	if !tok.Expiring(s.now(), refreshMargin) {
		return tok.IDToken, nil
	}
	if tok.RefreshToken == "" {
		return "", fmt.Errorf("credential expired and cannot be refreshed: %w", ErrNotSignedIn)
	}

	v, err, _ := s.refresh.Do(tok.User.UID, func() (any, error) {
		start := time.Now()
		fresh, err := s.provider.Refresh(ctx, tok.RefreshToken)
		s.collector.Track(metrics.OpTokenRefresh, start, err)
		if err != nil {
			return nil, fmt.Errorf("refresh credential: %w", err)
		}
		if fresh.RefreshToken == "" {
			fresh.RefreshToken = tok.RefreshToken
		}
		if fresh.User.Email == "" {
			fresh.User.Email = tok.User.Email
		}
		if fresh.User.DisplayName == "" {
			fresh.User.DisplayName = tok.User.DisplayName
		}
		if !s.replaceToken(tok, fresh) {
			return nil, ErrNotSignedIn
		}
		s.logger.Debug("credential refreshed", "uid", fresh.User.UID, "expires_at", fresh.ExpiresAt)
		return fresh.IDToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// replaceToken swaps in a refreshed token only if the user has not changed since
// the refresh started.
func (s *Session) replaceToken(old, fresh *Token) bool {
	s.mu.Lock()
	if s.token == nil || s.token.User.UID != old.User.UID {
		s.mu.Unlock()
		return false
	}
	s.token = fresh
	s.mu.Unlock()

	s.persist(fresh)
	return true
}

// SignIn signs in with email and password.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	if err := ValidateSignIn(password); err != nil {
		return err
	}
	tok, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	s.setToken(tok)
	return nil
}

// SignUp creates an account and signs it in.
func (s *Session) SignUp(ctx context.Context, email, password string) error {
	if err := ValidateSignIn(password); err != nil {
		return err
	}
	tok, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	s.setToken(tok)
	return nil
}

// SignInWithProvider runs the federated flow. A dismissed flow returns ErrPopupClosed.
func (s *Session) SignInWithProvider(ctx context.Context) error {
	if s.federated == nil {
		return ErrFederatedUnavailable
	}
	providerID, idToken, err := s.federated.Authenticate(ctx)
	if err != nil {
		return err
	}
	tok, err := s.provider.SignInWithIdP(ctx, providerID, idToken)
	if err != nil {
		return err
	}
	s.setToken(tok)
	return nil
}

// SignOut forgets the user and the stored credential.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	had := s.token != nil
	s.token = nil
	s.mu.Unlock()

	var err error
	if s.store != nil {
		err = s.store.Clear()
	}
	if had {
		s.logger.Debug("signed out")
		s.changes.Publish(nil)
	}
	return err
}

// Restore loads a persisted token. A missing or unreadable store leaves the
// session signed out.
func (s *Session) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	tok, err := s.store.Load()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	completeToken(tok, 0, s.now())
	if tok.User.UID == "" {
		return errors.New("stored credential has no user")
	}

	s.mu.Lock()
	changed := s.token == nil || s.token.User.UID != tok.User.UID
	s.token = tok
	s.mu.Unlock()

	s.logger.Debug("credential restored", "uid", tok.User.UID, "email", tok.User.Email)
	if changed {
		u := tok.User
		s.changes.Publish(&u)
	}
	return nil
}

// setToken installs a token from a sign-in and announces the user.
func (s *Session) setToken(tok *Token) {
	s.mu.Lock()
	changed := s.token == nil || s.token.User.UID != tok.User.UID
	s.token = tok
	s.mu.Unlock()

	s.persist(tok)
	s.logger.Debug("signed in", "uid", tok.User.UID, "email", tok.User.Email)
	if changed {
		u := tok.User
		s.changes.Publish(&u)
	}
}

func (s *Session) persist(tok *Token) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(tok); err != nil {
		s.logger.Warn("failed to persist credential", "error", err)
	}
}

// Close releases subscribers.
func (s *Session) Close() {
	s.changes.Close()
}
