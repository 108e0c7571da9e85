package history

import (
	"time"

	"github.com/raphaelgruber/ragchat/internal/models"
)

// Bucket groups summaries by recency relative to the local calendar midnight of now.
// Buckets keep the input order of their conversations and are returned in
// models.BucketOrder, omitting empty ones.
func Bucket(summaries []models.ConversationSummary, now time.Time) []models.DateBucket {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	bounds := []struct {
		label string
		from  time.Time
	}{
		{models.BucketToday, today},
		{models.BucketYesterday, today.AddDate(0, 0, -1)},
		{models.BucketLast7Days, today.AddDate(0, 0, -7)},
		{models.BucketLast30Days, today.AddDate(0, 0, -30)},
	}

	grouped := make(map[string][]models.ConversationSummary, len(models.BucketOrder))
	for _, s := range summaries {
		label := models.BucketOlder
		for _, b := range bounds {
			if !s.UpdatedAt.Before(b.from) {
				label = b.label
				break
			}
		}
		grouped[label] = append(grouped[label], s)
	}

	buckets := make([]models.DateBucket, 0, len(grouped))
	for _, label := range models.BucketOrder {
		if convs := grouped[label]; len(convs) > 0 {
			buckets = append(buckets, models.DateBucket{Label: label, Conversations: convs})
		}
	}
	return buckets
}
