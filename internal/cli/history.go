package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var historySearch string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved conversations",
	Long: `List your saved conversations grouped by when they were last updated.

Examples:
  ragchat history
  ragchat history --search hooks`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historySearch, "search", "s", "", "only show titles containing this text")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if authSession.CurrentUser() == nil {
		fmt.Fprintln(os.Stderr, signInHint)
		return nil
	}

	conversations.RefreshFor(cmd.Context(), authSession)
	if conversations.Failed() {
		return fmt.Errorf("could not load conversations from %s", apiClient.Endpoint())
	}

	groups := conversations.Groups(historySearch)
	if len(groups) == 0 {
		if historySearch != "" {
			fmt.Printf("No conversations match %q.\n", historySearch)
		} else {
			fmt.Println("No conversations yet.")
		}
		return nil
	}

	writeBuckets(os.Stdout, groups, cfg.Location)
	return nil
}
