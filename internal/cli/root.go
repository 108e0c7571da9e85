// Package cli provides the command-line interface for ragchat.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/raphaelgruber/ragchat/internal/auth"
	"github.com/raphaelgruber/ragchat/internal/client"
	"github.com/raphaelgruber/ragchat/internal/config"
	"github.com/raphaelgruber/ragchat/internal/history"
	"github.com/raphaelgruber/ragchat/internal/metrics"
	"github.com/raphaelgruber/ragchat/internal/session"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and logging
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error

	// Shared components, wired once per invocation
	collector     *metrics.Collector
	apiClient     *client.Client
	authSession   *auth.Session
	conversations *history.Store
	chat          *session.Session
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Chat with a question-answering service from the terminal",
	Long: `Ragchat is a terminal client for a retrieval-augmented question-answering API.

Ask one-off questions, hold an interactive conversation, and browse the
conversations saved to your account. Anonymous questions work without signing
in; saving and reopening conversations requires an account.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip wiring for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		// The chat screen owns the terminal, so it logs to file only
		if cmd.Name() == chatCmd.Name() {
			logger, closeLog = config.SetupFileLogger(cfg.LogFile, cfg.LogLevel)
		} else {
			logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		}

		collector = metrics.NewCollector()
		apiClient = client.New(cfg.APIURL,
			client.WithTimeout(cfg.ClientTimeout),
			client.WithLogger(logger),
			client.WithCollector(collector),
		)

		opts := []auth.SessionOption{
			auth.WithStore(auth.NewFileStore(cfg.CredentialsFile)),
			auth.WithLogger(logger),
			auth.WithCollector(collector),
		}
		if cfg.GoogleClientID != "" {
			opts = append(opts, auth.WithFederated(
				auth.NewGoogleFlow(cfg.GoogleClientID, cfg.GoogleClientSecret, showConsentURL, logger),
			))
		}
		authSession = auth.NewSession(auth.NewFirebaseProvider(cfg.FirebaseAPIKey), opts...)

		if err := authSession.Restore(cmd.Context()); err != nil {
			logger.Warn("ignoring stored credentials", "file", cfg.CredentialsFile, "error", err)
		}

		conversations = history.NewStore(apiClient,
			history.WithLogger(logger),
			history.WithClock(func() time.Time { return time.Now().In(cfg.Location) }),
		)
		chat = session.New(apiClient, authSession, session.WithLogger(logger))

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if verbose && collector != nil {
			fmt.Fprintln(os.Stderr)
			printStats(os.Stderr, collector.Snapshot())
		}

		if chat != nil {
			chat.Close()
		}
		if conversations != nil {
			conversations.Close()
		}
		if authSession != nil {
			authSession.Close()
		}
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Cancelling ctx aborts in-flight requests.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print request statistics after the command")

	// Add subcommands
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

// showConsentURL prints the federated sign-in URL for the user to open.
func showConsentURL(authURL string) error {
	fmt.Fprintf(os.Stderr, "Open this URL in your browser to sign in with Google:\n\n  %s\n\nWaiting for sign-in to complete...\n", authURL)
	return nil
}

// signInHint is shown when a command needs an account.
const signInHint = "Sign in to save and revisit conversations: ragchat login"
