package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print a saved conversation",
	Long: `Print every message of a saved conversation.

Examples:
  ragchat show c42`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	if authSession.CurrentUser() == nil {
		fmt.Fprintln(os.Stderr, signInHint)
		return nil
	}

	id := models.ConversationID(args[0])
	if err := chat.LoadConversation(cmd.Context(), id); err != nil {
		return err
	}

	st := chat.State()
	if len(st.Messages) == 0 {
		fmt.Println("This conversation has no messages.")
		return nil
	}

	fmt.Printf("Conversation %s (%d messages):\n\n", st.ConversationID, len(st.Messages))
	for _, m := range st.Messages {
		writeMessage(os.Stdout, m)
		fmt.Println()
	}
	return nil
}
