package messaging

import (
	"context"
	"gym-management/internal/domain/event"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingPublisher struct {
	mu      sync.Mutex
	release chan struct{}
	got     []event.Type
}

func (p *blockingPublisher) Publish(_ context.Context, e event.AuthEvent) error {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, e.Type)
	return nil
}

func (p *blockingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.Type(nil), p.got...)
}

func TestAsyncPublisher_DoesNotBlockOnStalledBroker(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	pub := NewAsyncPublisher(next, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(done)
	}()

	start := time.Now()
	require.NoError(t, pub.Publish(context.Background(), event.New(event.LoginSucceeded, uuid.New(), "")))

	// The worker holds the first event, two more fill the queue.
	assert.Eventually(t, func() bool { return len(pub.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, pub.Publish(context.Background(), event.New(event.LoggedOut, uuid.New(), "")))
	require.NoError(t, pub.Publish(context.Background(), event.New(event.LoggedOut, uuid.New(), "")))
	assert.ErrorIs(t, pub.Publish(context.Background(), event.New(event.LoggedOut, uuid.New(), "")), ErrQueueFull)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(next.release)
	cancel()
	<-done

	assert.Equal(t, []event.Type{event.LoginSucceeded, event.LoggedOut, event.LoggedOut}, next.types())
}

func TestAsyncPublisher_DeliversInOrder(t *testing.T) {
	next := &blockingPublisher{}
	pub := NewAsyncPublisher(next, 0)
	assert.Equal(t, DefaultQueueSize, cap(pub.queue))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(done)
	}()

	require.NoError(t, pub.Publish(context.Background(), event.New(event.UserRegistered, uuid.New(), "a@x.com")))
	require.NoError(t, pub.Publish(context.Background(), event.New(event.LoginSucceeded, uuid.New(), "a@x.com")))

	assert.Eventually(t, func() bool { return len(next.types()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []event.Type{event.UserRegistered, event.LoginSucceeded}, next.types())

	cancel()
	<-done
}
