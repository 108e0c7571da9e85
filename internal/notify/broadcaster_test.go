package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
	}
	var zero T
	return zero
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := New[int]("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, _ := b.Subscribe(ctx)
	ch2, _ := b.Subscribe(ctx)

	b.Publish(7)

	assert.Equal(t, 7, receive(t, ch1))
	assert.Equal(t, 7, receive(t, ch2))
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	b := New[struct{}]("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := b.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize*3; i++ {
			b.Publish(struct{}{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, ch, subscriberBufferSize)
}

func TestUnsubscribeOnContextCancel(t *testing.T) {
	b := New[int]("test", nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := b.Subscribe(ctx)
	require.Equal(t, 1, b.Len())

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("subscription not removed after cancel")
	}
	assert.Equal(t, 0, b.Len())
}

func TestUnsubscribeTwiceIsSafe(t *testing.T) {
	b := New[int]("test", nil)
	_, id := b.Subscribe(context.Background())

	b.Unsubscribe(id)
	b.Unsubscribe(id)
	assert.Equal(t, 0, b.Len())
}

func TestCloseClosesSubscribers(t *testing.T) {
	b := New[int]("test", nil)
	ch, _ := b.Subscribe(context.Background())

	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := b.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok, "subscribing after Close yields a closed channel")
}
