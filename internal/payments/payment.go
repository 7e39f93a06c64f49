package payments

import (
	"errors"
	"time"
)

// Status is a payment's lifecycle state.
type Status string

const (
	// StatusRequested marks a payment the provider has readied but not
	// approved; the tid is already durable and unique.
	StatusRequested Status = "REQUESTED"
	// StatusCompleted is terminal: approved exactly once.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed is terminal: the reservation it covered has been
	// released back to stock.
	StatusFailed Status = "FAILED"
)

// Method identifies the external payment provider.
type Method string

const (
	MethodKakaoPay Method = "KAKAO_PAY"
	MethodTossPay  Method = "TOSS_PAY"
)

// Payment tracks one provider transaction for an order. At most one payment
// per order reaches a terminal non-failed state.
type Payment struct {
	ID              string
	UserID          string
	OrderID         string
	Amount          int
	OrderQuantity   int
	Method          Method
	TID             string
	Status          Status
	ShippingAddress string
	DeliveryRequest string
	CreatedAt       time.Time
	ApprovedAt      time.Time
}

// ErrDuplicateTransactionID rejects a provider tid that is already attached
// to a durable payment. Enforced before the payment row is created.
var ErrDuplicateTransactionID = errors.New("duplicate provider transaction id")

// ErrPaymentNotFound indicates a missing payment reference.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrUserNotFound indicates a missing user reference.
var ErrUserNotFound = errors.New("user not found")

// ErrPaymentFailed indicates the payment is terminally failed and cannot be
// approved again.
var ErrPaymentFailed = errors.New("payment already failed")

// ErrProviderRejected is a definitive provider refusal: the payment is
// marked FAILED and the order's stock is released.
var ErrProviderRejected = errors.New("payment provider rejected the request")

// ErrProviderUnavailable is a transient transport failure: the payment stays
// REQUESTED and the call may be retried.
var ErrProviderUnavailable = errors.New("payment provider unavailable")
