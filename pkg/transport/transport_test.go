package transport

import (
	"context"
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(SubscriberConfig{ReceiveTimeout: 50 * time.Millisecond})
	defer sub.Close()

	b.Publish([]byte("hello"))

	ctx := context.Background()
	got, err := sub.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("Receive() = %q, want %q", got, "hello")
	}
}

func TestSubscriberReceiveTimesOutWhenIdle(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(SubscriberConfig{ReceiveTimeout: 20 * time.Millisecond})
	defer sub.Close()

	_, err := sub.Receive(context.Background())
	if err != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestSubscriberCloseRemovesFromBroker(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(SubscriberConfig{ReceiveTimeout: 20 * time.Millisecond})
	if err := sub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Publishing after close must not panic or block; a second Close
	// must also be a no-op.
	b.Publish([]byte("ignored"))
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
}

func TestRouterRequestReply(t *testing.T) {
	router := NewRouter(ReplyServerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = router.Serve(ctx, func(messageType string, payload []byte) []byte {
			return append([]byte("echo:"), payload...)
		})
	}()

	client := router.NewClient(func(data []byte) (string, error) { return "any", nil }, time.Second)
	defer client.Close()

	resp, err := client.Request(context.Background(), []byte("ping"))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if string(resp) != "echo:ping" {
		t.Fatalf("Request() = %q, want %q", resp, "echo:ping")
	}
}

func TestRouterRequestTimesOutWithoutAServer(t *testing.T) {
	router := NewRouter(ReplyServerConfig{})
	client := router.NewClient(func(data []byte) (string, error) { return "any", nil }, 20*time.Millisecond)
	defer client.Close()

	_, err := client.Request(context.Background(), []byte("ping"))
	if err == nil {
		t.Fatalf("expected an error when no server is serving the router")
	}
}
