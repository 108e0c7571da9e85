package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u := authSession.CurrentUser()
		if u == nil {
			fmt.Println("Not signed in.")
			return nil
		}
		fmt.Printf("%s <%s>\n", u.Name(), u.Email)
		if verbose {
			fmt.Printf("  UID: %s\n", u.UID)
			fmt.Printf("  Credentials: %s\n", cfg.CredentialsFile)
		}
		return nil
	},
}
