// Package session owns the active conversation: its message log, its server
// identity, and the send/load/reset operations against the chat API.
//
// # Operations
//
//   - Send: optimistic append, then POST /chat; rolled back exactly on failure
//   - LoadConversation: replaces the log with a stored conversation (signed-in only)
//   - StartNew: resets to an empty draft
//   - ReconcileOnSignOut: StartNew, triggered by an identity change
//
// At most one Send or LoadConversation is in flight at a time; a second call
// while one is pending returns ErrBusy without touching state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/raphaelgruber/ragchat/internal/auth"
	"github.com/raphaelgruber/ragchat/internal/client"
	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/raphaelgruber/ragchat/internal/notify"
)

// topK is the number of retrieved passages requested per question.
const topK = 5

// ErrBusy is returned when an operation is started while another is pending.
var ErrBusy = errors.New("another request is in progress")

// API is the part of the chat backend the session calls.
type API interface {
	Chat(ctx context.Context, token string, req client.ChatRequest) (*client.ChatResponse, error)
	GetConversation(ctx context.Context, token string, id models.ConversationID) ([]models.Message, error)
}

// Credentials resolves the current user and a bearer token for them.
type Credentials interface {
	CurrentUser() *auth.User
	Credential(ctx context.Context) (string, error)
}

// State is a point-in-time copy of the session.
type State struct {
	ConversationID models.ConversationID
	Messages       []models.Message
	Pending        bool
	LastError      string
}

// IsDraft reports whether the conversation has not been persisted yet.
func (s State) IsDraft() bool {
	return s.ConversationID.IsZero()
}

// Session is the single active conversation. All methods are safe for concurrent use.
type Session struct {
	api    API
	creds  Credentials
	logger *slog.Logger

	mu             sync.Mutex
	conversationID models.ConversationID
	messages       []models.Message
	pending        bool
	lastError      string
	// inflight stays set until the request returns, even across a reset.
	inflight bool
	// epoch increments on every reset; results from an older epoch are dropped.
	epoch uint64

	changes *notify.Broadcaster[struct{}]
	stale   *notify.Broadcaster[struct{}]
}

// Option customizes a Session.
type Option func(s *Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates an empty draft session.
func New(api API, creds Credentials, opts ...Option) *Session {
	s := &Session{
		api:    api,
		creds:  creds,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	s.changes = notify.New[struct{}]("session_changed", s.logger)
	s.stale = notify.New[struct{}]("conversations_stale", s.logger)
	return s
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]models.Message, len(s.messages))
	copy(msgs, s.messages)
	return State{
		ConversationID: s.conversationID,
		Messages:       msgs,
		Pending:        s.pending,
		LastError:      s.lastError,
	}
}

// Subscribe notifies after every state change.
func (s *Session) Subscribe(ctx context.Context) (<-chan struct{}, string) {
	return s.changes.Subscribe(ctx)
}

// SubscribeStale notifies after an authenticated exchange may have changed the
// user's conversation list.
func (s *Session) SubscribeStale(ctx context.Context) (<-chan struct{}, string) {
	return s.stale.Subscribe(ctx)
}

// beginLocked marks an operation pending and returns its epoch. s.mu must be held.
func (s *Session) beginLocked() (uint64, error) {
	if s.inflight {
		return 0, ErrBusy
	}
	s.inflight = true
	s.pending = true
	s.lastError = ""
	return s.epoch, nil
}

// finishLocked ends the in-flight operation and reports whether its result
// still applies. s.mu must be held.
func (s *Session) finishLocked(epoch uint64) bool {
	s.inflight = false
	if epoch != s.epoch {
		return false
	}
	s.pending = false
	return true
}

// token returns the bearer credential, or "" to send anonymously.
func (s *Session) token(ctx context.Context) string {
	if s.creds == nil || s.creds.CurrentUser() == nil {
		return ""
	}
	tok, err := s.creds.Credential(ctx)
	if err != nil {
		s.logger.Warn("credential unavailable, sending without it", "error", err)
		return ""
	}
	return tok
}

// Send submits text as the next user turn. Whitespace-only text is ignored.
// The user message is visible in State before the request is made.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.mu.Lock()
	epoch, err := s.beginLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	before := s.messages
	next := make([]models.Message, len(before), len(before)+2)
	copy(next, before)
	s.messages = append(next, models.NewUserMessage(text))
	conversationID := s.conversationID
	s.mu.Unlock()
	s.changes.Publish(struct{}{})

	token := s.token(ctx)
	resp, err := s.api.Chat(ctx, token, client.ChatRequest{
		Question:       text,
		ConversationID: conversationID,
		TopK:           topK,
	})

	s.mu.Lock()
	if !s.finishLocked(epoch) {
		s.mu.Unlock()
		s.logger.Debug("dropping chat response for a reset conversation")
		return nil
	}
	if err != nil {
		s.messages = before
		s.lastError = err.Error()
		s.mu.Unlock()
		s.logger.Warn("send failed", "conversation_id", conversationID, "error", err)
		s.changes.Publish(struct{}{})
		return fmt.Errorf("send message: %w", err)
	}

	if s.conversationID.IsZero() && !resp.ConversationID.IsZero() {
		s.conversationID = resp.ConversationID
	}
	s.messages = append(s.messages, models.NewAssistantMessage(resp.Answer, resp.Sources))
	adopted := s.conversationID
	s.mu.Unlock()

	s.logger.Debug("answer received",
		"conversation_id", adopted,
		"sources", len(resp.Sources),
		"authenticated", token != "")
	s.changes.Publish(struct{}{})
	if token != "" {
		s.stale.Publish(struct{}{})
	}
	return nil
}

// LoadConversation replaces the log with the stored conversation id. Without a
// signed-in user it does nothing.
func (s *Session) LoadConversation(ctx context.Context, id models.ConversationID) error {
	if s.creds == nil || s.creds.CurrentUser() == nil {
		return nil
	}

	s.mu.Lock()
	epoch, err := s.beginLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.changes.Publish(struct{}{})

	msgs, err := s.api.GetConversation(ctx, s.token(ctx), id)

	s.mu.Lock()
	if !s.finishLocked(epoch) {
		s.mu.Unlock()
		s.logger.Debug("dropping conversation for a reset session", "conversation_id", id)
		return nil
	}
	if err != nil {
		s.lastError = err.Error()
		s.mu.Unlock()
		s.logger.Warn("load conversation failed", "conversation_id", id, "error", err)
		s.changes.Publish(struct{}{})
		return fmt.Errorf("load conversation %s: %w", id, err)
	}

	loaded := make([]models.Message, len(msgs))
	for i, m := range msgs {
		loaded[i] = m.Normalize()
	}
	s.messages = loaded
	s.conversationID = id
	s.mu.Unlock()

	s.logger.Debug("conversation loaded", "conversation_id", id, "messages", len(loaded))
	s.changes.Publish(struct{}{})
	return nil
}

// StartNew resets to an empty draft. A request still in flight completes but its
// result is discarded, and Send or LoadConversation return ErrBusy until it does.
func (s *Session) StartNew() {
	s.mu.Lock()
	s.epoch++
	s.conversationID = ""
	s.messages = nil
	s.lastError = ""
	s.pending = false
	s.mu.Unlock()

	s.changes.Publish(struct{}{})
}

// ReconcileOnSignOut drops the conversation when the user signs out.
func (s *Session) ReconcileOnSignOut() {
	s.logger.Debug("identity changed, resetting conversation")
	s.StartNew()
}

// WatchAuth resets the conversation whenever the user signs out or a different
// user signs in, until ctx is done or users is closed.
func (s *Session) WatchAuth(ctx context.Context, users <-chan *auth.User) {
	var current string
	if s.creds != nil {
		if u := s.creds.CurrentUser(); u != nil {
			current = u.UID
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-users:
			if !ok {
				return
			}
			switch {
			case u == nil:
				current = ""
				s.ReconcileOnSignOut()
			case current != "" && u.UID != current:
				current = u.UID
				s.ReconcileOnSignOut()
			default:
				current = u.UID
			}
		}
	}
}

// Close releases subscribers.
func (s *Session) Close() {
	s.changes.Close()
	s.stale.Close()
}
