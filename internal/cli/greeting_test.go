package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGreeting(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name string
		now  time.Time
		user string
		want string
	}{
		{"midnight", day(0, 0), "Ada", "Good Morning, Ada."},
		{"late morning", day(11, 59), "Ada", "Good Morning, Ada."},
		{"noon", day(12, 0), "Ada", "Good Afternoon, Ada."},
		{"late afternoon", day(17, 59), "Ada", "Good Afternoon, Ada."},
		{"evening", day(18, 0), "Ada", "Good Evening, Ada."},
		{"anonymous", day(9, 0), "", "Good Morning, User."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, greeting(tt.now, tt.user))
		})
	}
}

func TestPickSuggestion(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"1", "Tell me about React Hooks", true},
		{"2", "Tell me about Components", true},
		{"3", "Tell me about State Management", true},
		{"4", "", false},
		{"0", "", false},
		{"12", "", false},
		{"hooks", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s, ok := pickSuggestion(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, s.Question())
			}
		})
	}
}
