package orders

import (
	"errors"
	"time"
)

// Status is an order's lifecycle state.
type Status string

const (
	// StatusReady marks a live stock claim: the quantity has been
	// subtracted from the product and not yet returned or confirmed.
	StatusReady Status = "READY"
	// StatusCompleted is terminal: payment approved, claim kept.
	StatusCompleted Status = "COMPLETED"
	// StatusExpired is terminal: the payment window lapsed, stock returned.
	StatusExpired Status = "EXPIRED"
	// StatusCancelled is terminal: payment definitively failed, stock returned.
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusReady:     {StatusCompleted: true, StatusExpired: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusExpired:   {},
	StatusCancelled: {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal reports whether s admits no further transitions.
func Terminal(s Status) bool {
	return len(validNext[s]) == 0
}

// Order is a buyer's claim on broadcast stock.
type Order struct {
	ID          string
	UserID      string
	ProductID   string
	BroadcastID string
	Quantity    int
	Status      Status
	CreatedAt   time.Time
}

// ErrInvalidQuantity rejects non-positive quantities before any lock is taken.
var ErrInvalidQuantity = errors.New("order quantity must be positive")

// ErrInsufficientStock is the business failure for a reservation exceeding
// the available quantity. Distinct from lock.ErrLockTimeout: the caller can
// tell "sold out" from "busy, retry".
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrOrderNotFound indicates a missing order reference.
var ErrOrderNotFound = errors.New("order not found")

// ErrOrderNotReady indicates the order already left READY. Racing expirers
// and double releases land here and treat it as a no-op.
var ErrOrderNotReady = errors.New("order is not in ready state")

// ErrProductNotFound indicates a missing product reference.
var ErrProductNotFound = errors.New("product not found")

// ErrBroadcastNotFound indicates a missing broadcast reference.
var ErrBroadcastNotFound = errors.New("broadcast not found")
