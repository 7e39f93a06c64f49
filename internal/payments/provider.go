package payments

import (
	"context"
	"time"
)

// ReadyRequest asks the provider to stage a payment for user approval.
type ReadyRequest struct {
	OrderID  string
	UserID   string
	ItemName string
	Quantity int
	Amount   int
}

// ReadyResult carries the provider's transaction id and the page the buyer
// must be sent to.
type ReadyResult struct {
	TID         string
	RedirectURL string
}

// ApproveRequest finalizes a staged transaction with the token the buyer
// brought back from the provider's approval page.
type ApproveRequest struct {
	TID     string
	Token   string
	OrderID string
	UserID  string
}

// ApproveResult is the provider's confirmation of a finished payment.
type ApproveResult struct {
	TID        string
	ApprovedAt time.Time
}

// Provider is an external payment gateway. Implementations map transport
// failures to ErrProviderUnavailable and refusals to ErrProviderRejected so
// the service can tell "retry later" from "give the stock back".
type Provider interface {
	Ready(ctx context.Context, req ReadyRequest) (ReadyResult, error)
	Approve(ctx context.Context, req ApproveRequest) (ApproveResult, error)
}
