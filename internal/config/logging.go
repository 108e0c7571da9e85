package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates a dual-output logger: text to stderr, JSON to file.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	return setupLogger(os.Stderr, logFile, level)
}

// SetupFileLogger logs JSON to file only. Used while a full-screen UI owns the terminal.
func SetupFileLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	return setupLogger(io.Discard, logFile, level)
}

func setupLogger(stderr io.Writer, logFile string, level slog.Level) (*slog.Logger, func() error) {
	// Stderr handler (text for readability)
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: level,
	})

	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		slog.Error("failed to create log directory, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Fall back to stderr-only if file fails
		slog.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return slog.New(stderrHandler), func() error { return nil }
	}

	return SetupLoggerWithWriters(stderr, file, level), file.Close
}

// SetupLoggerWithWriters creates a logger with custom writers: text to stderr,
// JSON to file.
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}
