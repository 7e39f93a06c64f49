package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"liveshop/internal/catalog"
	"liveshop/internal/events"
	"liveshop/internal/observability"
	"liveshop/internal/orders"
)

// ErrUnsupportedMethod rejects a payment method no provider is wired for.
var ErrUnsupportedMethod = errors.New("unsupported payment method")

// Store is the persistence surface the payment lifecycle needs.
type Store interface {
	CreatePayment(ctx context.Context, p Payment) error
	FailPayment(ctx context.Context, paymentID string) error
	PaymentByOrderID(ctx context.Context, orderID string) (Payment, error)
	PaymentByTID(ctx context.Context, tid string) (Payment, error)
	UserByID(ctx context.Context, id string) (catalog.User, error)
	ProductByID(ctx context.Context, id string) (catalog.Product, error)
	OrderByID(ctx context.Context, id string) (orders.Order, error)
}

// OrderLifecycle is the slice of the order service a payment drives: commit
// the claim on approval, or give the stock back on definitive failure.
type OrderLifecycle interface {
	Complete(ctx context.Context, orderID, paymentID string, approvedAt time.Time) error
	CancelReservation(ctx context.Context, orderID string) error
}

// Options tunes a payment Service.
type Options struct {
	Events  events.Publisher
	Metrics *observability.Metrics
	Logger  zerolog.Logger
	Now     func() time.Time
	NewID   func() string
}

// Service runs the payment lifecycle: REQUESTED when the provider stages a
// transaction, then exactly one of COMPLETED (order confirmed) or FAILED
// (reservation released).
type Service struct {
	store     Store
	providers map[Method]Provider
	orders    OrderLifecycle
	events    events.Publisher
	metrics   *observability.Metrics
	logger    zerolog.Logger

	now   func() time.Time
	newID func() string
}

// NewService constructs a Service over the given providers.
func NewService(store Store, providers map[Method]Provider, lifecycle OrderLifecycle, opts Options) *Service {
	if opts.Events == nil {
		opts.Events = events.NopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Service{
		store:     store,
		providers: providers,
		orders:    lifecycle,
		events:    opts.Events,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
		newID:     opts.NewID,
	}
}

// PrepareInput describes a payment staging request.
type PrepareInput struct {
	UserID          string
	OrderID         string
	Method          Method
	ShippingAddress string
	DeliveryRequest string
}

// PrepareResult points the buyer at the provider's approval page.
type PrepareResult struct {
	PaymentID   string
	OrderID     string
	TID         string
	RedirectURL string
}

// Prepare stages a payment with the provider and persists it as REQUESTED.
// The provider call runs outside any inventory lock; nothing durable exists
// until the provider has handed out a transaction id, so a provider failure
// here leaves no state to clean up.
func (s *Service) Prepare(ctx context.Context, in PrepareInput) (PrepareResult, error) {
	user, err := s.store.UserByID(ctx, in.UserID)
	if err != nil {
		return PrepareResult{}, err
	}
	o, err := s.store.OrderByID(ctx, in.OrderID)
	if err != nil {
		return PrepareResult{}, err
	}
	if o.Status != orders.StatusReady {
		return PrepareResult{}, orders.ErrOrderNotReady
	}
	product, err := s.store.ProductByID(ctx, o.ProductID)
	if err != nil {
		return PrepareResult{}, err
	}

	provider, err := s.provider(in.Method)
	if err != nil {
		return PrepareResult{}, err
	}

	amount := product.Price * o.Quantity
	ready, err := provider.Ready(ctx, ReadyRequest{
		OrderID:  o.ID,
		UserID:   user.ID,
		ItemName: product.Name,
		Quantity: o.Quantity,
		Amount:   amount,
	})
	if err != nil {
		return PrepareResult{}, fmt.Errorf("stage %s payment: %w", in.Method, err)
	}

	p := Payment{
		ID:              s.newID(),
		UserID:          user.ID,
		OrderID:         o.ID,
		Amount:          amount,
		OrderQuantity:   o.Quantity,
		Method:          in.Method,
		TID:             ready.TID,
		Status:          StatusRequested,
		ShippingAddress: in.ShippingAddress,
		DeliveryRequest: in.DeliveryRequest,
		CreatedAt:       s.now(),
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return PrepareResult{}, err
	}

	s.events.Publish(events.TypePaymentRequested, o.ID, paymentPayload(p))
	s.logger.Info().
		Str("payment_id", p.ID).
		Str("order_id", o.ID).
		Str("method", string(in.Method)).
		Str("tid", p.TID).
		Msg("payment requested")

	return PrepareResult{
		PaymentID:   p.ID,
		OrderID:     o.ID,
		TID:         p.TID,
		RedirectURL: ready.RedirectURL,
	}, nil
}

// ApproveInput carries the token the buyer brought back from the provider.
type ApproveInput struct {
	OrderID string
	Token   string
}

// ApproveOutcome reports how the approval concluded. A replayed approval
// carries the same amount and timestamps as the original.
type ApproveOutcome struct {
	PaymentID        string
	TID              string
	Amount           int
	CreatedAt        time.Time
	ApprovedAt       time.Time
	AlreadyCompleted bool
}

// Approve finalizes a staged payment. Replays are answered from storage
// without touching the provider. A transport failure leaves the payment
// REQUESTED for another attempt; a definitive refusal fails the payment and
// releases the order's stock.
func (s *Service) Approve(ctx context.Context, in ApproveInput) (ApproveOutcome, error) {
	p, err := s.store.PaymentByOrderID(ctx, in.OrderID)
	if err != nil {
		return ApproveOutcome{}, err
	}

	switch p.Status {
	case StatusCompleted:
		return ApproveOutcome{
			PaymentID:        p.ID,
			TID:              p.TID,
			Amount:           p.Amount,
			CreatedAt:        p.CreatedAt,
			ApprovedAt:       p.ApprovedAt,
			AlreadyCompleted: true,
		}, nil
	case StatusFailed:
		return ApproveOutcome{}, ErrPaymentFailed
	}

	provider, err := s.provider(p.Method)
	if err != nil {
		return ApproveOutcome{}, err
	}

	res, err := provider.Approve(ctx, ApproveRequest{
		TID:     p.TID,
		Token:   in.Token,
		OrderID: p.OrderID,
		UserID:  p.UserID,
	})
	if errors.Is(err, ErrProviderRejected) {
		return ApproveOutcome{}, s.failAndRelease(ctx, p, err)
	}
	if err != nil {
		// Transient: the payment stays REQUESTED and the buyer can retry.
		s.metrics.ObservePaymentApproval("RETRYABLE")
		s.logger.Warn().Err(err).Str("payment_id", p.ID).Msg("payment approval attempt failed")
		return ApproveOutcome{}, fmt.Errorf("approve %s payment: %w", p.Method, err)
	}

	if err := s.orders.Complete(ctx, p.OrderID, p.ID, res.ApprovedAt); err != nil {
		return ApproveOutcome{}, err
	}

	s.metrics.ObservePaymentApproval(string(StatusCompleted))
	p.Status = StatusCompleted
	s.events.Publish(events.TypePaymentCompleted, p.OrderID, paymentPayload(p))
	s.logger.Info().
		Str("payment_id", p.ID).
		Str("order_id", p.OrderID).
		Time("approved_at", res.ApprovedAt).
		Msg("payment completed")

	return ApproveOutcome{
		PaymentID:  p.ID,
		TID:        p.TID,
		Amount:     p.Amount,
		CreatedAt:  p.CreatedAt,
		ApprovedAt: res.ApprovedAt,
	}, nil
}

// failAndRelease marks the payment FAILED and hands the reserved stock back.
func (s *Service) failAndRelease(ctx context.Context, p Payment, cause error) error {
	s.metrics.ObservePaymentApproval(string(StatusFailed))

	if err := s.store.FailPayment(ctx, p.ID); err != nil {
		return fmt.Errorf("fail payment %s: %w", p.ID, err)
	}
	if err := s.orders.CancelReservation(ctx, p.OrderID); err != nil {
		return fmt.Errorf("release reservation for order %s: %w", p.OrderID, err)
	}

	p.Status = StatusFailed
	s.events.Publish(events.TypePaymentFailed, p.OrderID, paymentPayload(p))
	s.logger.Warn().
		Err(cause).
		Str("payment_id", p.ID).
		Str("order_id", p.OrderID).
		Msg("payment failed, reservation released")
	return cause
}

func (s *Service) provider(m Method) (Provider, error) {
	p, ok := s.providers[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, m)
	}
	return p, nil
}

func paymentPayload(p Payment) events.PaymentPayload {
	return events.PaymentPayload{
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		TID:       p.TID,
		Method:    string(p.Method),
		Amount:    int64(p.Amount),
		Status:    string(p.Status),
	}
}
