package messaging

import (
	"context"
	"errors"
	"gym-management/internal/domain/event"
	"gym-management/internal/logger"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultQueueSize = 256
	flushTimeout     = 5 * time.Second
)

var ErrQueueFull = errors.New("event queue is full")

// AsyncPublisher hands events to a background worker so callers never wait
// on the broker. When the queue is full the event is dropped.
type AsyncPublisher struct {
	next  event.Publisher
	queue chan event.AuthEvent
}

func NewAsyncPublisher(next event.Publisher, size int) *AsyncPublisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &AsyncPublisher{next: next, queue: make(chan event.AuthEvent, size)}
}

func (p *AsyncPublisher) Publish(_ context.Context, e event.AuthEvent) error {
	select {
	case p.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is cancelled, then flushes what is
// left within flushTimeout.
func (p *AsyncPublisher) Run(ctx context.Context) {
	logger.Info("Event publisher started", zap.Int("queue_size", cap(p.queue)))

	for {
		select {
		case <-ctx.Done():
			p.flush()
			return
		case e := <-p.queue:
			p.deliver(ctx, e)
		}
	}
}

func (p *AsyncPublisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for {
		select {
		case e := <-p.queue:
			if ctx.Err() != nil {
				logger.Warn("Dropping queued events on shutdown", zap.Int("dropped", len(p.queue)+1))
				return
			}
			p.deliver(ctx, e)
		default:
			logger.Info("Event publisher stopped")
			return
		}
	}
}

func (p *AsyncPublisher) deliver(ctx context.Context, e event.AuthEvent) {
	if err := p.next.Publish(ctx, e); err != nil {
		logger.Warn("Failed to publish auth event",
			zap.String("type", string(e.Type)),
			zap.Error(err),
		)
	}
}
