package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/ragchat/internal/auth"
	"github.com/raphaelgruber/ragchat/internal/models"
)

type fakeLister struct {
	mu     sync.Mutex
	calls  []string
	result func(token string) ([]models.ConversationSummary, error)
}

func (f *fakeLister) ListConversations(_ context.Context, token string) ([]models.ConversationSummary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, token)
	f.mu.Unlock()
	return f.result(token)
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCreds struct {
	user  *auth.User
	token string
	err   error
}

func (f *fakeCreds) CurrentUser() *auth.User                    { return f.user }
func (f *fakeCreds) Credential(context.Context) (string, error) { return f.token, f.err }

var sample = []models.ConversationSummary{
	{ID: "c2", Title: "React Hooks deep dive", UpdatedAt: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)},
	{ID: "c1", Title: "State management", UpdatedAt: time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)},
	{ID: "c3", Title: "Components and props", UpdatedAt: time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)},
}

func TestStoreRefresh(t *testing.T) {
	api := &fakeLister{result: func(string) ([]models.ConversationSummary, error) { return sample, nil }}
	s := NewStore(api)
	defer s.Close()

	got := s.Refresh(t.Context(), "tok")
	assert.Equal(t, sample, got)
	assert.Equal(t, []string{"tok"}, api.calls)
	assert.False(t, s.Failed())
}

func TestStoreRefreshUnauthenticated(t *testing.T) {
	api := &fakeLister{result: func(string) ([]models.ConversationSummary, error) { return sample, nil }}
	s := NewStore(api)
	defer s.Close()

	s.Refresh(t.Context(), "tok")
	got := s.Refresh(t.Context(), "")

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, s.All())
	assert.Equal(t, 1, api.callCount())
	assert.False(t, s.Failed())
}

func TestStoreRefreshFailureKeepsCache(t *testing.T) {
	fail := false
	api := &fakeLister{result: func(string) ([]models.ConversationSummary, error) {
		if fail {
			return nil, errors.New("server error: 500 Internal Server Error")
		}
		return sample, nil
	}}
	s := NewStore(api)
	defer s.Close()

	s.Refresh(t.Context(), "tok")
	fail = true
	got := s.Refresh(t.Context(), "tok")

	assert.Equal(t, sample, got)
	assert.True(t, s.Failed())

	fail = false
	s.Refresh(t.Context(), "tok")
	assert.False(t, s.Failed())
}

func TestStoreDiscardsStaleRefresh(t *testing.T) {
	release := make(chan struct{})
	older := []models.ConversationSummary{{ID: "old", Title: "old"}}
	api := &fakeLister{result: func(token string) ([]models.ConversationSummary, error) {
		if token == "slow" {
			<-release
			return older, nil
		}
		return sample, nil
	}}
	s := NewStore(api)
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Refresh(context.Background(), "slow")
	}()
	require.Eventually(t, func() bool { return api.callCount() == 1 }, time.Second, 5*time.Millisecond)

	s.Refresh(t.Context(), "fast")
	close(release)
	<-done

	assert.Equal(t, sample, s.All())
}

func TestStoreFilter(t *testing.T) {
	api := &fakeLister{result: func(string) ([]models.ConversationSummary, error) { return sample, nil }}
	s := NewStore(api)
	defer s.Close()
	s.Refresh(t.Context(), "tok")

	tests := []struct {
		name  string
		query string
		want  []models.ConversationID
	}{
		{"empty returns all in server order", "", []models.ConversationID{"c2", "c1", "c3"}},
		{"case insensitive", "REACT", []models.ConversationID{"c2"}},
		{"substring", "ment", []models.ConversationID{"c1"}},
		{"shared substring", "ent", []models.ConversationID{"c1", "c3"}},
		{"word inside title", "and", []models.ConversationID{"c3"}},
		{"no match", "vue", []models.ConversationID{}},
		{"id is not searched", "c1", []models.ConversationID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Filter(tt.query)
			ids := make([]models.ConversationID, 0, len(got))
			for _, c := range got {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStoreGroups(t *testing.T) {
	api := &fakeLister{result: func(string) ([]models.ConversationSummary, error) { return sample, nil }}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := NewStore(api, WithClock(func() time.Time { return now }))
	defer s.Close()
	s.Refresh(t.Context(), "tok")

	groups := s.Groups("")
	assert.Equal(t, []string{models.BucketToday, models.BucketYesterday, models.BucketOlder}, labels(groups))

	groups = s.Groups("state")
	require.Len(t, groups, 1)
	assert.Equal(t, models.BucketYesterday, groups[0].Label)
}

func TestStoreRefreshFor(t *testing.T) {
	api := &fakeLister{result: func(string) ([]models.ConversationSummary, error) { return sample, nil }}

	t.Run("signed out skips the server", func(t *testing.T) {
		s := NewStore(api)
		defer s.Close()
		assert.Empty(t, s.RefreshFor(t.Context(), &fakeCreds{}))
		assert.Equal(t, 0, api.callCount())
	})

	t.Run("credential failure flags", func(t *testing.T) {
		s := NewStore(api)
		defer s.Close()
		s.RefreshFor(t.Context(), &fakeCreds{user: &auth.User{UID: "u1"}, err: errors.New("expired")})
		assert.True(t, s.Failed())
	})

	t.Run("signed in", func(t *testing.T) {
		s := NewStore(api)
		defer s.Close()
		got := s.RefreshFor(t.Context(), &fakeCreds{user: &auth.User{UID: "u1"}, token: "tok"})
		assert.Len(t, got, len(sample))
	})
}

func TestStoreWatch(t *testing.T) {
	api := &fakeLister{result: func(string) ([]models.ConversationSummary, error) { return sample, nil }}
	s := NewStore(api)
	defer s.Close()

	updates, _ := s.Subscribe(t.Context())
	stale := make(chan struct{}, 1)
	users := make(chan *auth.User, 1)
	creds := &fakeCreds{user: &auth.User{UID: "u1"}, token: "tok"}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Watch(ctx, stale, users, creds)
	}()

	stale <- struct{}{}
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("no update after stale signal")
	}
	assert.Len(t, s.All(), len(sample))

	creds.user = nil
	users <- nil
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("no update after sign-out")
	}
	assert.Empty(t, s.All())

	cancel()
	<-done
}
