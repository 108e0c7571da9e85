package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/spf13/cobra"
)

var askConversation string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question",
	Long: `Ask a question and print the answer with its sources.

When signed in, the exchange is saved and its conversation id is printed so it
can be continued with --conversation. Anonymous questions are not saved.

Examples:
  ragchat ask "What is a React hook?"
  ragchat ask "And useEffect?" --conversation c42`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "continue a saved conversation")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("question is empty")
	}

	if askConversation != "" {
		if authSession.CurrentUser() == nil {
			fmt.Fprintln(os.Stderr, signInHint)
			return nil
		}
		if err := chat.LoadConversation(ctx, models.ConversationID(askConversation)); err != nil {
			return err
		}
	}

	if err := chat.Send(ctx, question); err != nil {
		return err
	}

	st := chat.State()
	if n := len(st.Messages); n > 0 {
		writeMessage(os.Stdout, st.Messages[n-1])
	}
	if !st.IsDraft() && authSession.CurrentUser() != nil {
		fmt.Printf("\nConversation: %s\n", st.ConversationID)
	}
	return nil
}
