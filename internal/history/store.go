// Package history keeps the signed-in user's conversation list: a cache rebuilt
// wholesale on every refresh, with text filtering and date bucketing for display.
package history

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/ragchat/internal/auth"
	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/raphaelgruber/ragchat/internal/notify"
)

// Lister fetches the conversation summaries visible to a credential.
type Lister interface {
	ListConversations(ctx context.Context, token string) ([]models.ConversationSummary, error)
}

// Credentials resolves the current user and a bearer token for them.
type Credentials interface {
	CurrentUser() *auth.User
	Credential(ctx context.Context) (string, error)
}

// Store caches conversation summaries. All methods are safe for concurrent use.
type Store struct {
	api    Lister
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	cache  []models.ConversationSummary
	failed bool
	gen    uint64

	updates *notify.Broadcaster[struct{}]
}

// Option customizes a Store.
type Option func(s *Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for bucketing. Its location decides where
// midnight falls.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store.
func NewStore(api Lister, opts ...Option) *Store {
	s := &Store{
		api:    api,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "history")
	s.updates = notify.New[struct{}]("history_updated", s.logger)
	return s
}

// Refresh replaces the cache with the server's list. An empty token means no one
// is signed in: the cache empties without contacting the server. A failure keeps
// the previous cache and sets Failed. A response overtaken by a newer refresh is
// discarded.
func (s *Store) Refresh(ctx context.Context, token string) []models.ConversationSummary {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	if strings.TrimSpace(token) == "" {
		s.cache = nil
		s.failed = false
		s.mu.Unlock()
		s.updates.Publish(struct{}{})
		return []models.ConversationSummary{}
	}
	s.mu.Unlock()

	summaries, err := s.api.ListConversations(ctx, token)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale conversation list", "generation", gen)
		return s.All()
	}
	if err != nil {
		s.failed = true
		s.mu.Unlock()
		s.logger.Warn("failed to refresh conversations", "error", err)
		s.updates.Publish(struct{}{})
		return s.All()
	}
	s.cache = summaries
	s.failed = false
	s.mu.Unlock()

	s.logger.Debug("conversations refreshed", "count", len(summaries))
	s.updates.Publish(struct{}{})
	return s.All()
}

// RefreshFor resolves the current credential and refreshes with it. A credential
// error is treated like a failed fetch.
func (s *Store) RefreshFor(ctx context.Context, creds Credentials) []models.ConversationSummary {
	if creds.CurrentUser() == nil {
		return s.Refresh(ctx, "")
	}
	token, err := creds.Credential(ctx)
	if err != nil {
		s.mu.Lock()
		s.failed = true
		s.mu.Unlock()
		s.logger.Warn("no credential for conversation refresh", "error", err)
		s.updates.Publish(struct{}{})
		return s.All()
	}
	return s.Refresh(ctx, token)
}

// Watch refreshes on every stale signal and whenever the signed-in user changes,
// until ctx is done or stale is closed.
func (s *Store) Watch(ctx context.Context, stale <-chan struct{}, users <-chan *auth.User, creds Credentials) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-stale:
			if !ok {
				return
			}
			s.RefreshFor(ctx, creds)
		case _, ok := <-users:
			if !ok {
				users = nil
				continue
			}
			s.RefreshFor(ctx, creds)
		}
	}
}

// Subscribe notifies after every cache change or failed refresh.
func (s *Store) Subscribe(ctx context.Context) (<-chan struct{}, string) {
	return s.updates.Subscribe(ctx)
}

// Failed reports whether the latest refresh failed.
func (s *Store) Failed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failed
}

// All returns a copy of the cached summaries in server order.
func (s *Store) All() []models.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ConversationSummary, len(s.cache))
	copy(out, s.cache)
	return out
}

// Filter returns the summaries whose title contains query, ignoring case.
// An empty query returns everything.
func (s *Store) Filter(query string) []models.ConversationSummary {
	all := s.All()
	if query == "" {
		return all
	}

	q := strings.ToLower(query)
	out := make([]models.ConversationSummary, 0, len(all))
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Title), q) {
			out = append(out, c)
		}
	}
	return out
}

// Groups returns the filtered summaries bucketed by date.
func (s *Store) Groups(query string) []models.DateBucket {
	return Bucket(s.Filter(query), s.now())
}

// Close releases subscribers.
func (s *Store) Close() {
	s.updates.Close()
}
