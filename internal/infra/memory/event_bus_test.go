package memory

import (
	"context"
	"testing"
	"time"

	"dailyquiz-service/internal/domain"
)

func TestEventBusDeliversToListeners(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.AttemptEvent, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Listen(ctx, func(e domain.AttemptEvent) { got <- e })
	}()

	deadline := time.Now().Add(2 * time.Second)
	for bus.Listeners() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("listener never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := bus.AttemptRecorded(ctx, domain.AttemptEvent{AttemptID: "a1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case e := <-got:
		if e.AttemptID != "a1" {
			t.Fatalf("unexpected event %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event not delivered")
	}

	cancel()
	<-done
	if bus.Listeners() != 0 {
		t.Fatalf("expected listener removed after cancel")
	}
}
