package cli

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/ragchat/internal/auth"
	"github.com/spf13/cobra"
)

var loginGoogle bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to your account",
	Long: `Sign in with email and password, or with Google using --google.

The credential is stored in $RAGCHAT_CREDENTIALS_FILE (default
~/.config/ragchat/credentials.yaml) until you run 'ragchat logout'.

Examples:
  ragchat login
  ragchat login --google`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginGoogle, "google", false, "sign in with Google in your browser")
}

func runLogin(cmd *cobra.Command, args []string) error {
	if err := requireIdentityProvider(); err != nil {
		return err
	}

	if loginGoogle {
		err := authSession.SignInWithProvider(cmd.Context())
		if errors.Is(err, auth.ErrFederatedUnavailable) {
			return fmt.Errorf("google sign-in needs GOOGLE_OAUTH_CLIENT_ID and GOOGLE_OAUTH_CLIENT_SECRET")
		}
		if err != nil {
			return federatedAuthError(err)
		}
		printSignedIn()
		return nil
	}

	email, err := promptLine("Email: ")
	if err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	if err := authSession.SignIn(cmd.Context(), email, password); err != nil {
		return authError(err)
	}
	printSignedIn()
	return nil
}

// requireIdentityProvider fails early when no identity provider is configured.
func requireIdentityProvider() error {
	if cfg.FirebaseAPIKey == "" {
		return fmt.Errorf("FIREBASE_API_KEY is not set")
	}
	return nil
}

// authError converts an identity error into the message shown to the user.
// A dismissed federated sign-in is not an error.
func authError(err error) error {
	return userFacing(err, auth.UserMessage)
}

// federatedAuthError is authError for the Google sign-in flow.
func federatedAuthError(err error) error {
	return userFacing(err, auth.FederatedUserMessage)
}

func userFacing(err error, message func(error) (string, bool)) error {
	msg, silent := message(err)
	if silent {
		return nil
	}
	logger.Debug("identity operation failed", "error", err)
	return errors.New(msg)
}

func printSignedIn() {
	if u := authSession.CurrentUser(); u != nil {
		fmt.Printf("Signed in as %s (%s).\n", u.Name(), u.Email)
	}
}
