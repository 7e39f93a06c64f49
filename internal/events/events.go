// Package events publishes order and payment lifecycle events.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types carried on the lifecycle topic.
const (
	TypeOrderCreated   = "order.created"
	TypeOrderCompleted = "order.completed"
	TypeOrderExpired   = "order.expired"
	TypeOrderCancelled = "order.cancelled"

	TypePaymentRequested = "payment.requested"
	TypePaymentCompleted = "payment.completed"
	TypePaymentFailed    = "payment.failed"
)

// Envelope wraps every published event.
type Envelope struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// OrderPayload describes an order lifecycle transition.
type OrderPayload struct {
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Remaining int64  `json:"remaining,omitempty"`
	Status    string `json:"status"`
}

// PaymentPayload describes a payment lifecycle transition.
type PaymentPayload struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	TID       string `json:"tid"`
	Method    string `json:"method"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Publisher emits lifecycle events. Implementations must not block the
// caller on broker availability.
type Publisher interface {
	Publish(eventType, key string, payload any)
}

// NewEnvelope marshals payload into a ready-to-send envelope.
func NewEnvelope(eventType, key string, at time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:       eventType,
		Key:        key,
		OccurredAt: at.UTC(),
		Payload:    raw,
	}, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(string, string, any) {}

// CapturePublisher records events in memory for tests.
type CapturePublisher struct {
	mu     sync.Mutex
	events []Envelope
}

func (c *CapturePublisher) Publish(eventType, key string, payload any) {
	env, err := NewEnvelope(eventType, key, time.Now(), payload)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, env)
	c.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (c *CapturePublisher) Events() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, len(c.events))
	copy(out, c.events)
	return out
}
