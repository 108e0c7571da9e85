// Package notify provides in-memory publish/subscribe signals used to decouple the
// conversation session, the conversation list, and the identity session.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 16

// Broadcaster fans out values of type T to every subscriber.
// The zero value is not usable; create one with New.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]chan T
	closed      bool
	logger      *slog.Logger
}

// New creates a broadcaster. Pass nil logger for default.
func New[T any](name string, logger *slog.Logger) *Broadcaster[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster[T]{
		subscribers: make(map[string]chan T),
		logger:      logger.With("component", "notify", "signal", name),
	}
}

// Subscribe registers a subscriber and returns its channel and subscription ID.
// The subscription is removed, and its channel closed, when ctx is cancelled.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) (<-chan T, string) {
	subID := uuid.New().String()
	ch := make(chan T, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish delivers v to all subscribers without blocking.
// Subscribers whose buffers are full miss the value.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
			b.logger.Debug("dropped signal for slow subscriber", "sub_id", id)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster[T]) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Len returns the number of active subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. Later subscriptions receive a closed channel.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	b.closed = true
}
