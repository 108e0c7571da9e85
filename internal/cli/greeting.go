package cli

import (
	"fmt"
	"time"
)

// suggestion is a starter topic offered on an empty chat.
type suggestion struct {
	Title       string
	Description string
}

var suggestions = []suggestion{
	{Title: "React Hooks", Description: "Learn about useState, useEffect, and custom hooks"},
	{Title: "Components", Description: "Build reusable UI components with props and state"},
	{Title: "State Management", Description: "Manage complex state with Context or Redux"},
}

// Question returns the text sent when the suggestion is picked.
func (s suggestion) Question() string {
	return "Tell me about " + s.Title
}

// pickSuggestion maps "1".."3" to a suggestion.
func pickSuggestion(input string) (suggestion, bool) {
	if len(input) != 1 || input[0] < '1' || input[0] > '9' {
		return suggestion{}, false
	}
	i := int(input[0] - '1')
	if i >= len(suggestions) {
		return suggestion{}, false
	}
	return suggestions[i], true
}

// greeting returns the time-of-day salutation for name.
func greeting(now time.Time, name string) string {
	if name == "" {
		name = "User"
	}

	var part string
	switch h := now.Hour(); {
	case h < 12:
		part = "Good Morning"
	case h < 18:
		part = "Good Afternoon"
	default:
		part = "Good Evening"
	}
	return fmt.Sprintf("%s, %s.", part, name)
}
