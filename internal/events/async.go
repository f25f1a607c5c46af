package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrBufferFull is returned when the async queue cannot take another event.
var ErrBufferFull = errors.New("events: buffer full")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("events: publisher closed")

// publishTimeout bounds a single delivery to the underlying publisher.
const publishTimeout = 5 * time.Second

// Async queues events and hands them to the wrapped Publisher from a single
// worker goroutine, so callers never wait on a broker.
type Async struct {
	next   Publisher
	queue  chan Event
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsync starts a worker draining a queue of the given size into next.
func NewAsync(next Publisher, buffer int, logger zerolog.Logger) *Async {
	if buffer <= 0 {
		buffer = 1
	}
	a := &Async{
		next:   next,
		queue:  make(chan Event, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish enqueues event without blocking. A full queue drops the event.
func (a *Async) Publish(_ context.Context, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- event:
		return nil
	default:
		a.logger.Warn().
			Str("type", string(event.Type)).
			Str("room_id", event.RoomID).
			Msg("lifecycle event dropped, buffer full")
		return ErrBufferFull
	}
}

// Close drains the queue, then closes the wrapped publisher.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}

func (a *Async) run() {
	defer close(a.done)
	for event := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.next.Publish(ctx, event); err != nil {
			a.logger.Error().Err(err).
				Str("type", string(event.Type)).
				Str("room_id", event.RoomID).
				Msg("failed to publish lifecycle event")
		}
		cancel()
	}
}
