package cli

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/ragchat/internal/auth"
	"github.com/raphaelgruber/ragchat/internal/client"
	"github.com/raphaelgruber/ragchat/internal/history"
	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/raphaelgruber/ragchat/internal/session"
)

type stubAPI struct {
	mu        sync.Mutex
	questions []string
	tokens    []string
}

func (s *stubAPI) Chat(_ context.Context, token string, req client.ChatRequest) (*client.ChatResponse, error) {
	s.mu.Lock()
	s.questions = append(s.questions, req.Question)
	s.tokens = append(s.tokens, token)
	s.mu.Unlock()
	return &client.ChatResponse{
		Answer:         "answer to " + req.Question,
		Sources:        []models.Source{{Title: "React docs"}},
		ConversationID: "c1",
	}, nil
}

func (s *stubAPI) GetConversation(_ context.Context, _ string, id models.ConversationID) ([]models.Message, error) {
	return []models.Message{
		models.NewUserMessage("stored question " + id.String()),
		models.NewAssistantMessage("stored answer", nil),
	}, nil
}

func (s *stubAPI) ListConversations(context.Context, string) ([]models.ConversationSummary, error) {
	return []models.ConversationSummary{
		{ID: "c1", Title: "Hooks", UpdatedAt: time.Now()},
		{ID: "c2", Title: "Components", UpdatedAt: time.Now().AddDate(0, 0, -40)},
	}, nil
}

// noProvider is never reached: tests sign in through a stored credential.
type noProvider struct{}

func (noProvider) SignInWithPassword(context.Context, string, string) (*auth.Token, error) {
	return nil, auth.ErrInvalidCredentials
}
func (noProvider) SignUp(context.Context, string, string) (*auth.Token, error) {
	return nil, auth.ErrEmailExists
}
func (noProvider) SignInWithIdP(context.Context, string, string) (*auth.Token, error) {
	return nil, auth.ErrPopupClosed
}
func (noProvider) Refresh(context.Context, string) (*auth.Token, error) {
	return nil, auth.ErrNotSignedIn
}

type storedCredential struct {
	tok *auth.Token
}

func (s *storedCredential) Load() (*auth.Token, error) { return s.tok, nil }
func (s *storedCredential) Save(tok *auth.Token) error { s.tok = tok; return nil }
func (s *storedCredential) Clear() error               { s.tok = nil; return nil }

type chatFixture struct {
	api   *stubAPI
	model chatModel
	auth  *auth.Session
}

func newChatFixture(t *testing.T, signedIn bool) *chatFixture {
	t.Helper()

	store := &storedCredential{}
	if signedIn {
		store.tok = &auth.Token{
			IDToken:      "id-token",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
			User:         auth.User{UID: "u1", Email: "ada@example.com"},
		}
	}
	as := auth.NewSession(noProvider{}, auth.WithStore(store))
	require.NoError(t, as.Restore(t.Context()))

	api := &stubAPI{}
	s := session.New(api, as)
	list := history.NewStore(api)
	t.Cleanup(func() {
		s.Close()
		list.Close()
		as.Close()
	})

	return &chatFixture{
		api:   api,
		auth:  as,
		model: newChatModel(t.Context(), s, list, as, time.UTC),
	}
}

// run executes cmd and feeds its message back into the model.
func (f *chatFixture) run(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	next, _ := f.model.Update(msg)
	f.model = next.(chatModel)
}

func TestChatSendQuestion(t *testing.T) {
	f := newChatFixture(t, false)

	m, cmd := f.model.handleInput("  what is JSX?  ")
	f.model = m
	f.run(t, cmd)

	assert.Equal(t, []string{"what is JSX?"}, f.api.questions)
	assert.Equal(t, []string{""}, f.api.tokens)
	require.Len(t, f.model.state.Messages, 2)
	assert.Contains(t, f.model.renderContent(), "answer to what is JSX?")
	assert.Contains(t, f.model.renderContent(), "Sources: React docs")
}

func TestChatSuggestionOnEmptyChat(t *testing.T) {
	f := newChatFixture(t, false)

	assert.Contains(t, f.model.renderContent(), "Good ")
	assert.Contains(t, f.model.renderContent(), "2. Components")

	m, cmd := f.model.handleInput("2")
	f.model = m
	f.run(t, cmd)
	assert.Equal(t, []string{"Tell me about Components"}, f.api.questions)

	// Once the chat has messages, digits are ordinary questions.
	m, cmd = f.model.handleInput("2")
	f.model = m
	f.run(t, cmd)
	assert.Equal(t, "2", f.api.questions[1])
}

func TestChatIgnoresInputWhilePending(t *testing.T) {
	f := newChatFixture(t, false)
	f.model.state.Pending = true

	m, cmd := f.model.handleInput("hello")
	assert.Nil(t, cmd)
	assert.Contains(t, m.notice, "Still waiting")
}

func TestChatBlankInput(t *testing.T) {
	f := newChatFixture(t, false)
	m, cmd := f.model.handleInput("   ")
	assert.Nil(t, cmd)
	assert.Empty(t, m.notice)
}

func TestChatCommandsSignedOut(t *testing.T) {
	tests := []struct {
		input      string
		wantNotice string
	}{
		{"/history", signInHint},
		{"/open c1", signInHint},
		{"/open", "Usage: /open <conversation-id>"},
		{"/logout", "Not signed in."},
		{"/login", "Quit and run 'ragchat login' to sign in."},
		{"/help", chatHelp},
		{"/bogus", "Unknown command /bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f := newChatFixture(t, false)
			m, cmd := f.model.handleInput(tt.input)
			assert.Nil(t, cmd)
			assert.Contains(t, m.notice, tt.wantNotice)
		})
	}
}

func TestChatNewConversation(t *testing.T) {
	f := newChatFixture(t, false)

	m, cmd := f.model.handleInput("hello")
	f.model = m
	f.run(t, cmd)
	require.NotEmpty(t, f.model.state.Messages)

	m, cmd = f.model.handleInput("/new")
	assert.Nil(t, cmd)
	assert.Empty(t, m.state.Messages)
	assert.True(t, m.state.IsDraft())
}

func TestChatSignedIn(t *testing.T) {
	f := newChatFixture(t, true)

	assert.Contains(t, f.model.renderContent(), "Good ")
	assert.Contains(t, f.model.renderContent(), "ada.")

	t.Run("open conversation", func(t *testing.T) {
		m, cmd := f.model.handleInput("/open c7")
		f.model = m
		f.run(t, cmd)
		assert.Equal(t, models.ConversationID("c7"), f.model.state.ConversationID)
		assert.Contains(t, f.model.renderContent(), "stored question c7")
	})

	t.Run("history", func(t *testing.T) {
		m, cmd := f.model.handleInput("/history hook")
		f.model = m
		f.run(t, cmd)
		out := f.model.renderHistory()
		assert.Contains(t, out, "Today")
		assert.Contains(t, out, "Hooks")
		assert.NotContains(t, out, "Components")
	})

	t.Run("send attaches credential", func(t *testing.T) {
		m, cmd := f.model.handleInput("/new")
		f.model = m
		assert.Nil(t, cmd)

		m, cmd = f.model.handleInput("hello")
		f.model = m
		f.run(t, cmd)
		assert.Equal(t, "id-token", f.api.tokens[len(f.api.tokens)-1])
	})

	t.Run("logout", func(t *testing.T) {
		m, cmd := f.model.handleInput("/logout")
		f.model = m
		f.run(t, cmd)
		assert.Nil(t, f.auth.CurrentUser())

		next, _ := f.model.Update(userChangedMsg{user: nil})
		f.model = next.(chatModel)
		assert.Equal(t, "Signed out.", f.model.notice)
		assert.Nil(t, f.model.user)
	})
}

func TestChatQuit(t *testing.T) {
	f := newChatFixture(t, false)
	m, cmd := f.model.handleInput("/quit")
	assert.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.renderContent())
}
