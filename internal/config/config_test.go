package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"RAGCHAT_API_URL", "RAGCHAT_CLIENT_TIMEOUT", "RAGCHAT_LOG_LEVEL",
		"RAGCHAT_CREDENTIALS_FILE", "RAGCHAT_TIMEZONE", "FIREBASE_API_KEY",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	cfg := Load()

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 60*time.Second, cfg.ClientTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, filepath.Join("/tmp/xdg", "ragchat", "credentials.yaml"), cfg.CredentialsFile)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Empty(t, cfg.FirebaseAPIKey)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RAGCHAT_API_URL", "https://api.example.com/")
	t.Setenv("RAGCHAT_CLIENT_TIMEOUT", "5s")
	t.Setenv("RAGCHAT_LOG_LEVEL", "debug")
	t.Setenv("RAGCHAT_CREDENTIALS_FILE", "/tmp/creds.yaml")
	t.Setenv("RAGCHAT_TIMEZONE", "UTC")
	t.Setenv("FIREBASE_API_KEY", "key")

	cfg := Load()

	assert.Equal(t, "https://api.example.com", cfg.APIURL, "trailing slash trimmed")
	assert.Equal(t, 5*time.Second, cfg.ClientTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "/tmp/creds.yaml", cfg.CredentialsFile)
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, "key", cfg.FirebaseAPIKey)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := parseLogLevel(tt.in); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("nope", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("-5s", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func TestParseLocationFallsBack(t *testing.T) {
	assert.Equal(t, time.Local, parseLocation("Not/AZone"))
}
