package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")
	store := NewFileStore(path)

	t.Run("empty store loads nothing", func(t *testing.T) {
		tok, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, tok)
	})

	want := &Token{
		IDToken:      "id",
		RefreshToken: "refresh",
		ExpiresAt:    time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		User:         User{UID: "u1", Email: "ada@example.com"},
	}

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, store.Save(want))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		got, err := store.Load()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.IDToken, got.IDToken)
		assert.Equal(t, want.RefreshToken, got.RefreshToken)
		assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
		assert.Equal(t, want.User, got.User)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, store.Clear())
		require.NoError(t, store.Clear())

		tok, err := store.Load()
		require.NoError(t, err)
		assert.Nil(t, tok)
	})

	t.Run("corrupt file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("id_token: [unterminated"), 0o600))
		_, err := store.Load()
		assert.Error(t, err)
	})
}
