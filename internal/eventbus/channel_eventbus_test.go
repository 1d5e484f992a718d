package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestChannelEventBus_PublishAndSubscribe(t *testing.T) {
	eb := NewChannelEventBus(
		WithBufferSize(1),
		WithWorkerCount(1),
		WithRetries(1, 10*time.Millisecond),
	)
	defer eb.Close()

	received := make(chan string, 1)
	handler := func(ctx context.Context, event Event) error {
		received <- string(event.Type())
		return nil
	}
	_, err := eb.Subscribe([]EventType{EventTurnSuccess}, handler)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	evt := NewEvent(EventTurnSuccess, nil, "test", nil)
	err = eb.Publish(context.Background(), evt)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case typ := <-received:
		if typ != string(EventTurnSuccess) {
			t.Errorf("expected event type %v, got %v", EventTurnSuccess, typ)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event handler")
	}
}

func TestChannelEventBus_SubscribeAll(t *testing.T) {
	eb := NewChannelEventBus(WithBufferSize(4), WithWorkerCount(1))
	defer eb.Close()

	received := make(chan EventType, 4)
	_, err := eb.SubscribeAll(func(ctx context.Context, event Event) error {
		received <- event.Type()
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeAll failed: %v", err)
	}

	for _, eventType := range []EventType{EventSessionCreated, EventToolCallStarted, EventExecutionTimedOut} {
		if err := eb.Publish(context.Background(), NewEmptyEvent(eventType)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	seen := make(map[EventType]bool)
	timeout := time.After(500 * time.Millisecond)
	for len(seen) < 3 {
		select {
		case eventType := <-received:
			seen[eventType] = true
		case <-timeout:
			t.Fatalf("timeout, saw %v", seen)
		}
	}
}

func TestChannelEventBus_HandlerRetry(t *testing.T) {
	eb := NewChannelEventBus(
		WithBufferSize(1),
		WithWorkerCount(1),
		WithRetries(2, 10*time.Millisecond),
	)
	defer eb.Close()

	var mu sync.Mutex
	calls := 0
	done := make(chan struct{})
	handler := func(ctx context.Context, event Event) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 2 {
			return context.DeadlineExceeded
		}
		close(done)
		return nil
	}
	if _, err := eb.Subscribe([]EventType{EventSystemError}, handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := eb.Publish(context.Background(), NewEmptyEvent(EventSystemError)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("handler never succeeded after retry")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("expected 2 handler calls, got %d", calls)
	}
}

func TestChannelEventBus_Unsubscribe(t *testing.T) {
	eb := NewChannelEventBus(WithBufferSize(1), WithWorkerCount(1))
	defer eb.Close()

	received := make(chan struct{}, 2)
	id, err := eb.Subscribe([]EventType{EventSystemInfo}, func(ctx context.Context, event Event) error {
		received <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := eb.Unsubscribe(id); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if err := eb.Publish(context.Background(), NewEmptyEvent(EventSystemInfo)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case <-received:
		t.Error("handler invoked after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannelEventBus_CloseRejectsPublish(t *testing.T) {
	eb := NewChannelEventBus(WithBufferSize(1), WithWorkerCount(1))
	if err := eb.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close is idempotent
	if err := eb.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	if err := eb.Publish(context.Background(), NewEmptyEvent(EventSystemInfo)); err == nil {
		t.Error("publish on a closed bus must fail")
	}
	if _, err := eb.Subscribe([]EventType{EventSystemInfo}, func(context.Context, Event) error { return nil }); err == nil {
		t.Error("subscribe on a closed bus must fail")
	}
}

func TestChannelEventBus_InvalidSubscriptions(t *testing.T) {
	eb := NewChannelEventBus(WithBufferSize(1), WithWorkerCount(1))
	defer eb.Close()

	if _, err := eb.Subscribe(nil, func(context.Context, Event) error { return nil }); err == nil {
		t.Error("subscribe with no event types must fail")
	}
	if _, err := eb.Subscribe([]EventType{EventSystemInfo}, nil); err == nil {
		t.Error("subscribe with nil handler must fail")
	}
	if _, err := eb.SubscribeAll(nil); err == nil {
		t.Error("SubscribeAll with nil handler must fail")
	}
}

func TestBaseEvent_Metadata(t *testing.T) {
	evt := NewEvent(EventTurnStarted, "payload", "test", nil).
		WithMetadata("k", "v").
		AddMetadata(map[string]interface{}{"n": 1})

	if evt.Payload() != "payload" || evt.Source() != "test" {
		t.Errorf("unexpected event fields: %v %v", evt.Payload(), evt.Source())
	}
	if evt.Metadata()["k"] != "v" || evt.Metadata()["n"] != 1 {
		t.Errorf("metadata lost: %v", evt.Metadata())
	}
	if evt.Timestamp().IsZero() {
		t.Error("timestamp not set")
	}
}
