package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all configuration values.
type Config struct {
	// Question-answering API
	APIURL        string
	ClientTimeout time.Duration

	// Identity provider
	FirebaseAPIKey     string
	GoogleClientID     string
	GoogleClientSecret string
	CredentialsFile    string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Conversation list bucketing
	Location *time.Location
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		APIURL:        strings.TrimRight(getEnv("RAGCHAT_API_URL", "http://localhost:8000"), "/"),
		ClientTimeout: parseDuration(getEnv("RAGCHAT_CLIENT_TIMEOUT", ""), 60*time.Second),

		FirebaseAPIKey:     getEnv("FIREBASE_API_KEY", ""),
		GoogleClientID:     getEnv("GOOGLE_OAUTH_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_OAUTH_CLIENT_SECRET", ""),
		CredentialsFile:    getEnv("RAGCHAT_CREDENTIALS_FILE", defaultCredentialsFile()),

		LogFile:  getEnv("RAGCHAT_LOG_FILE", filepath.Join(os.TempDir(), "ragchat.log")),
		LogLevel: parseLogLevel(getEnv("RAGCHAT_LOG_LEVEL", "INFO")),

		Location: parseLocation(getEnv("RAGCHAT_TIMEZONE", "")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// parseLocation falls back to the local zone for empty or unknown names.
func parseLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("unknown timezone, using local", "timezone", name, "error", err)
		return time.Local
	}
	return loc
}

// defaultCredentialsFile follows XDG: $XDG_CONFIG_HOME/ragchat/credentials.yaml.
func defaultCredentialsFile() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "ragchat", "credentials.yaml")
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "ragchat", "credentials.yaml")
}
