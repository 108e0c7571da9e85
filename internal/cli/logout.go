package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if authSession.CurrentUser() == nil {
			fmt.Println("Not signed in.")
			return nil
		}
		if err := authSession.SignOut(cmd.Context()); err != nil {
			return fmt.Errorf("sign out: %w", err)
		}
		fmt.Println("Signed out.")
		return nil
	},
}
