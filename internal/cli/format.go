package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/raphaelgruber/ragchat/internal/models"
)

// writeMessage prints one turn with its citations.
func writeMessage(w io.Writer, m models.Message) {
	label := "You"
	if m.Role == models.RoleAssistant {
		label = "Assistant"
	}
	fmt.Fprintf(w, "%s: %s\n", label, m.Content)

	if len(m.Sources) > 0 {
		fmt.Fprintf(w, "  Sources: %s\n", sourceTitles(m.Sources))
	}
}

func sourceTitles(sources []models.Source) string {
	titles := make([]string, len(sources))
	for i, s := range sources {
		titles[i] = s.Title
	}
	return strings.Join(titles, ", ")
}

// writeBuckets prints conversations grouped by date. Times are shown in loc.
func writeBuckets(w io.Writer, buckets []models.DateBucket, loc *time.Location) {
	for i, b := range buckets {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s\n", b.Label)
		for _, c := range b.Conversations {
			fmt.Fprintf(w, "  %-24s %s  %s\n", c.ID, formatUpdated(c.UpdatedAt, b.Label, loc), c.Title)
		}
	}
}

// formatUpdated shows a clock time for today and a date otherwise.
func formatUpdated(t time.Time, label string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	if label == models.BucketToday {
		return t.Format("15:04     ")
	}
	return t.Format("2006-01-02")
}
