package cli

import (
	"github.com/raphaelgruber/ragchat/internal/auth"
	"github.com/spf13/cobra"
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Create an account with email and password and sign in to it.

Passwords must be at least 6 characters.`,
	Args: cobra.NoArgs,
	RunE: runSignup,
}

func runSignup(cmd *cobra.Command, args []string) error {
	if err := requireIdentityProvider(); err != nil {
		return err
	}

	email, err := promptLine("Email: ")
	if err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}

	if err := auth.ValidateSignUp(password, confirm); err != nil {
		return authError(err)
	}
	if err := authSession.SignUp(cmd.Context(), email, password); err != nil {
		return authError(err)
	}
	printSignedIn()
	return nil
}
