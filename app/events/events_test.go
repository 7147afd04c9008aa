package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus()
	firstID, first := bus.Subscribe()
	_, second := bus.Subscribe()
	if bus.SubscriberCount() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", bus.SubscriberCount())
	}

	event := NewEvent(ValidationStarted, 7, "wallet")
	bus.Publish(event)
	for _, channel := range []<-chan *Event{first, second} {
		select {
		case received := <-channel:
			if received != event {
				t.Fatalf("received %s, want %s", received, event)
			}
		default:
			t.Fatalf("event was not delivered")
		}
	}

	if !bus.Unsubscribe(firstID) {
		t.Fatalf("Unsubscribe returned false")
	}
	if _, ok := <-first; ok {
		t.Fatalf("channel of removed subscriber is still open")
	}
	if bus.Unsubscribe(firstID) {
		t.Fatalf("second Unsubscribe returned true")
	}
}

func TestEventBusDoesNotBlock(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(NewEvent(ValidationCompleted, 1, ""))

	_, channel := bus.Subscribe()
	for i := 0; i < subscriberBufferSize*2; i++ {
		bus.Publish(NewEvent(ValidationCompleted, uint64(i), ""))
	}
	if len(channel) != subscriberBufferSize {
		t.Fatalf("expected a full buffer of %d events, got %d", subscriberBufferSize, len(channel))
	}
}

func TestEventJSON(t *testing.T) {
	event := NewEvent(ValidationTimedOut, 3, "wallet")
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal: %s", err)
	}
	decoded := &Event{}
	err = json.Unmarshal(data, decoded)
	if err != nil {
		t.Fatalf("Unmarshal: %s", err)
	}
	if decoded.Type != ValidationTimedOut || decoded.OperationID != 3 || decoded.Store != "wallet" {
		t.Fatalf("unexpected decoded event: %s", decoded)
	}
}

func TestRedisMirror(t *testing.T) {
	mirror, err := NewRedisMirror("redis://localhost:6379", "reorgkeeper-test")
	if err != nil {
		t.Fatalf("NewRedisMirror: %s", err)
	}
	defer mirror.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := mirror.Ping(ctx); err != nil {
		t.Skip("Redis not available:", err)
	}

	subscription := mirror.Subscribe(ctx)
	defer subscription.Close()
	_, err = subscription.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive: %s", err)
	}

	mirror.Publish(NewEvent(ValidationStateChanged, 9, "wallet"))
	select {
	case message := <-subscription.Channel():
		decoded := &Event{}
		err := json.Unmarshal([]byte(message.Payload), decoded)
		if err != nil {
			t.Fatalf("Unmarshal: %s", err)
		}
		if decoded.Type != ValidationStateChanged || decoded.OperationID != 9 {
			t.Fatalf("unexpected mirrored event: %s", decoded)
		}
	case <-ctx.Done():
		t.Fatalf("timeout waiting for the mirrored event")
	}
}

func TestRedisMirrorPublishDoesNotWaitForRedis(t *testing.T) {
	// Nothing listens on port 1
	mirror, err := NewRedisMirror("redis://127.0.0.1:1", "reorgkeeper-test")
	if err != nil {
		t.Fatalf("NewRedisMirror: %s", err)
	}

	start := time.Now()
	for i := 0; i < redisQueueSize*2; i++ {
		mirror.Publish(NewEvent(ValidationStarted, uint64(i), "wallet"))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("publishing to an unreachable redis took %s", elapsed)
	}

	closed := make(chan error)
	go func() {
		closed <- mirror.Close()
	}()
	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close: %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Close did not return")
	}

	// Publishing after Close is a no-op
	mirror.Publish(NewEvent(ValidationCompleted, 1, "wallet"))
}
