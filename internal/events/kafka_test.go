package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) snapshot() ([]kafka.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]kafka.Message, len(f.messages))
	copy(out, f.messages)
	return out, f.closed
}

func TestKafkaPublisher_DeliversEnvelope(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	pub := newKafkaPublisher(w, 8, zerolog.Nop())
	pub.nowFunc = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithCancel(context.Background())
	go pub.Run(ctx)

	pub.Publish(TypeOrderCreated, "product-1", OrderPayload{
		OrderID:   "order-1",
		UserID:    "user-1",
		ProductID: "product-1",
		Quantity:  2,
		Remaining: 3,
		Status:    "READY",
	})

	cancel()
	pub.Wait()

	msgs, closed := w.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !closed {
		t.Fatalf("expected writer to be closed after Run returns")
	}
	if string(msgs[0].Key) != "product-1" {
		t.Fatalf("unexpected key %q", msgs[0].Key)
	}

	var env Envelope
	if err := json.Unmarshal(msgs[0].Value, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeOrderCreated {
		t.Fatalf("unexpected type %q", env.Type)
	}

	var payload OrderPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != "order-1" || payload.Remaining != 3 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestKafkaPublisher_FlushesInboxOnShutdown(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	pub := newKafkaPublisher(w, 8, zerolog.Nop())

	// Queue before Run starts so shutdown has something to flush.
	for i := 0; i < 3; i++ {
		pub.Publish(TypePaymentCompleted, "order-1", PaymentPayload{PaymentID: "pay-1"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.Run(ctx)

	msgs, _ := w.snapshot()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 flushed messages, got %d", len(msgs))
	}
}

func TestKafkaPublisher_DropsWhenInboxFull(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	pub := newKafkaPublisher(w, 1, zerolog.Nop())

	// No Run loop draining, so the second publish must not block.
	done := make(chan struct{})
	go func() {
		pub.Publish(TypeOrderExpired, "product-1", OrderPayload{OrderID: "order-1"})
		pub.Publish(TypeOrderExpired, "product-1", OrderPayload{OrderID: "order-2"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on full inbox")
	}
}

func TestCapturePublisher_RecordsEvents(t *testing.T) {
	t.Parallel()

	rec := &CapturePublisher{}
	rec.Publish(TypeOrderCancelled, "product-9", OrderPayload{OrderID: "order-9", Status: "CANCELLED"})

	got := rec.Events()
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Type != TypeOrderCancelled || got[0].Key != "product-9" {
		t.Fatalf("unexpected event: %+v", got[0])
	}
}
