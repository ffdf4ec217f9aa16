package memory

import (
	"context"
	"sync"

	"dailyquiz-service/internal/domain"
)

// EventBus fans attempt events out to listeners inside this process only.
type EventBus struct {
	mu        sync.Mutex
	listeners map[chan domain.AttemptEvent]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{listeners: make(map[chan domain.AttemptEvent]struct{})}
}

// AttemptRecorded never blocks; a listener whose buffer is full misses the event.
func (b *EventBus) AttemptRecorded(_ context.Context, event domain.AttemptEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.listeners {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *EventBus) Listen(ctx context.Context, handle func(domain.AttemptEvent)) error {
	ch := make(chan domain.AttemptEvent, 16)
	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.listeners, ch)
		b.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-ch:
			handle(event)
		}
	}
}

// Listeners reports how many Listen calls are active.
func (b *EventBus) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
