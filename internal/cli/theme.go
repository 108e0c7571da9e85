package cli

import "github.com/charmbracelet/lipgloss"

// Theme holds the color scheme for the chat screen.
type Theme struct {
	Status    lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Hint      lipgloss.Color
	User      lipgloss.Color
	Assistant lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:    lipgloss.Color("#5FAFD7"), // light blue
	Success:   lipgloss.Color("#00D787"), // green
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
	User:      lipgloss.Color("#AF87FF"), // lavender
	Assistant: lipgloss.Color("#00D787"), // green
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant).Bold(true)
}
