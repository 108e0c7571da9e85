package models

import "time"

// ConversationSummary is the list-view projection of a persisted conversation.
type ConversationSummary struct {
	ID        ConversationID `json:"id"`
	Title     string         `json:"title"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Bucket labels, in display order.
const (
	BucketToday      = "Today"
	BucketYesterday  = "Yesterday"
	BucketLast7Days  = "Last 7 Days"
	BucketLast30Days = "Last 30 Days"
	BucketOlder      = "Older"
)

// BucketOrder lists bucket labels in the order they are displayed.
var BucketOrder = []string{
	BucketToday,
	BucketYesterday,
	BucketLast7Days,
	BucketLast30Days,
	BucketOlder,
}

// DateBucket groups summaries by recency for display. Derived, never persisted.
type DateBucket struct {
	Label         string                `json:"label"`
	Conversations []ConversationSummary `json:"conversations"`
}
