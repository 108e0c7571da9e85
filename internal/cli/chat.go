package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/ragchat/internal/auth"
	"github.com/raphaelgruber/ragchat/internal/history"
	"github.com/raphaelgruber/ragchat/internal/models"
	"github.com/raphaelgruber/ragchat/internal/session"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Start an interactive conversation.

Type a question and press Enter. On an empty chat, 1-3 pick a suggested topic.

Commands:
  /new              start a new conversation
  /history [query]  show saved conversations, optionally filtered
  /open <id>        reopen a saved conversation
  /logout           sign out
  /help             list commands
  /quit             leave (also Ctrl+C)`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

const chatHelp = "/new · /history [query] · /open <id> · /logout · /quit"

// sessionChangedMsg signals the conversation state changed.
type sessionChangedMsg struct{}

// historyUpdatedMsg signals the conversation list changed.
type historyUpdatedMsg struct{}

// userChangedMsg carries the new signed-in user, nil after sign-out.
type userChangedMsg struct {
	user *auth.User
}

// opDoneMsg reports the outcome of a send, load or sign-out.
type opDoneMsg struct {
	err error
}

// chatModel is the bubbletea model for the chat screen.
type chatModel struct {
	ctx           context.Context
	chat          *session.Session
	conversations *history.Store
	auth          *auth.Session
	now           func() time.Time
	loc           *time.Location

	changes <-chan struct{}
	updates <-chan struct{}
	users   <-chan *auth.User

	input       textinput.Model
	theme       Theme
	state       session.State
	user        *auth.User
	showHistory bool
	query       string
	notice      string
	quitting    bool
}

// newChatModel creates the chat screen model. Its subscriptions end with ctx.
func newChatModel(ctx context.Context, s *session.Session, store *history.Store, as *auth.Session, loc *time.Location) chatModel {
	input := textinput.New()
	input.Placeholder = "Ask me anything about React..."
	input.CharLimit = 4000
	input.Focus()

	changes, _ := s.Subscribe(ctx)
	updates, _ := store.Subscribe(ctx)
	users, _ := as.Subscribe(ctx)

	if loc == nil {
		loc = time.Local
	}

	return chatModel{
		ctx:           ctx,
		chat:          s,
		conversations: store,
		auth:          as,
		now:           time.Now,
		loc:           loc,
		changes:       changes,
		updates:       updates,
		users:         users,
		input:         input,
		theme:         defaultTheme,
		state:         s.State(),
		user:          as.CurrentUser(),
	}
}

// Init starts listening for state changes.
func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		waitSignal(m.changes, sessionChangedMsg{}),
		waitSignal(m.updates, historyUpdatedMsg{}),
		waitUser(m.users),
	)
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			text := m.input.Value()
			m.input.Reset()
			return m.handleInput(text)
		}

	case sessionChangedMsg:
		m.state = m.chat.State()
		return m, waitSignal(m.changes, sessionChangedMsg{})

	case historyUpdatedMsg:
		return m, waitSignal(m.updates, historyUpdatedMsg{})

	case userChangedMsg:
		m.user = msg.user
		if msg.user == nil {
			m.notice = "Signed out."
			m.showHistory = false
		}
		return m, waitUser(m.users)

	case opDoneMsg:
		if msg.err != nil && errors.Is(msg.err, session.ErrBusy) {
			m.notice = "Still waiting for the previous answer."
		}
		m.state = m.chat.State()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleInput runs a submitted line: a slash command, a suggestion number, or a question.
func (m chatModel) handleInput(raw string) (chatModel, tea.Cmd) {
	text := strings.TrimSpace(raw)
	m.notice = ""
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}

	if len(m.state.Messages) == 0 {
		if s, ok := pickSuggestion(text); ok {
			text = s.Question()
		}
	}
	if m.state.Pending {
		m.notice = "Still waiting for the previous answer."
		return m, nil
	}

	ctx, chat := m.ctx, m.chat
	return m, func() tea.Msg {
		return opDoneMsg{err: chat.Send(ctx, text)}
	}
}

func (m chatModel) runCommand(text string) (chatModel, tea.Cmd) {
	name, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/new":
		m.chat.StartNew()
		m.state = m.chat.State()
		m.showHistory = false
		return m, nil

	case "/history":
		m.showHistory = true
		m.query = arg
		if m.user == nil {
			m.notice = signInHint
			return m, nil
		}
		ctx, store, as := m.ctx, m.conversations, m.auth
		return m, func() tea.Msg {
			store.RefreshFor(ctx, as)
			return historyUpdatedMsg{}
		}

	case "/open":
		if arg == "" {
			m.notice = "Usage: /open <conversation-id>"
			return m, nil
		}
		if m.user == nil {
			m.notice = signInHint
			return m, nil
		}
		if m.state.Pending {
			m.notice = "Still waiting for the previous answer."
			return m, nil
		}
		m.showHistory = false
		ctx, chat, id := m.ctx, m.chat, models.ConversationID(arg)
		return m, func() tea.Msg {
			return opDoneMsg{err: chat.LoadConversation(ctx, id)}
		}

	case "/logout":
		if m.user == nil {
			m.notice = "Not signed in."
			return m, nil
		}
		ctx, as := m.ctx, m.auth
		return m, func() tea.Msg {
			return opDoneMsg{err: as.SignOut(ctx)}
		}

	case "/login":
		m.notice = "Quit and run 'ragchat login' to sign in."
		return m, nil

	case "/help":
		m.notice = chatHelp
		return m, nil

	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit
	}

	m.notice = fmt.Sprintf("Unknown command %s. Try %s", name, chatHelp)
	return m, nil
}

// View renders the chat screen.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m chatModel) renderContent() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	if len(m.state.Messages) == 0 {
		b.WriteString(m.theme.titleStyle().Render(greeting(m.now().In(m.loc), m.user.Name())))
		b.WriteString("\nAsk me anything about React?\n\n")
		for i, s := range suggestions {
			fmt.Fprintf(&b, "  %d. %s  %s\n", i+1, s.Title, m.theme.hintStyle().Render(s.Description))
		}
	} else {
		for _, msg := range m.state.Messages {
			m.renderMessage(&b, msg)
		}
	}

	if m.state.Pending {
		b.WriteString("\n" + m.theme.statusStyle().Render("Thinking...") + "\n")
	}
	if m.state.LastError != "" {
		b.WriteString("\n" + m.theme.errorStyle().Render("✗ "+m.state.LastError) + "\n")
	}
	if m.showHistory {
		b.WriteString("\n" + m.renderHistory())
	}
	if m.notice != "" {
		b.WriteString("\n" + m.theme.hintStyle().Render(m.notice) + "\n")
	}

	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(m.theme.hintStyle().Render("Enter to send · /help for commands · Ctrl+C to quit") + "\n")
	return b.String()
}

func (m chatModel) renderMessage(b *strings.Builder, msg models.Message) {
	if msg.Role == models.RoleAssistant {
		b.WriteString(m.theme.assistantStyle().Render("Assistant") + "\n")
	} else {
		b.WriteString(m.theme.userStyle().Render("You") + "\n")
	}
	b.WriteString(msg.Content + "\n")
	if len(msg.Sources) > 0 {
		b.WriteString(m.theme.hintStyle().Render("Sources: "+sourceTitles(msg.Sources)) + "\n")
	}
	b.WriteString("\n")
}

func (m chatModel) renderHistory() string {
	if m.user == nil {
		return m.theme.hintStyle().Render(signInHint) + "\n"
	}
	if m.conversations.Failed() {
		return m.theme.errorStyle().Render("✗ Could not load conversations") + "\n"
	}

	groups := m.conversations.Groups(m.query)
	if len(groups) == 0 {
		return m.theme.hintStyle().Render("No conversations found.") + "\n"
	}

	var b strings.Builder
	writeBuckets(&b, groups, m.loc)
	return b.String()
}

// waitSignal delivers msg when ch fires. A closed channel stops listening.
func waitSignal(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return msg
	}
}

func waitUser(ch <-chan *auth.User) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return userChangedMsg{user: u}
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Sign-out resets the conversation; authenticated answers and user changes
	// refresh the conversation list.
	resetUsers, _ := authSession.Subscribe(ctx)
	go chat.WatchAuth(ctx, resetUsers)

	stale, _ := chat.SubscribeStale(ctx)
	listUsers, _ := authSession.Subscribe(ctx)
	go conversations.Watch(ctx, stale, listUsers, authSession)

	if authSession.CurrentUser() != nil {
		go conversations.RefreshFor(ctx, authSession)
	}

	model := newChatModel(ctx, chat, conversations, authSession, cfg.Location)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
