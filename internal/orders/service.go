package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"liveshop/internal/catalog"
	"liveshop/internal/events"
	"liveshop/internal/lock"
	"liveshop/internal/observability"
)

// Store is the persistence surface the order lifecycle needs. The Postgres
// store in internal/db/commerce implements it.
type Store interface {
	ReserveAndCreateOrder(ctx context.Context, o Order) (remaining int, err error)
	ExpireOrder(ctx context.Context, orderID string) (remaining int, err error)
	CancelOrder(ctx context.Context, orderID string) (remaining int, err error)
	CompleteOrderWithPayment(ctx context.Context, orderID, paymentID string, approvedAt time.Time) error
	OrderByID(ctx context.Context, id string) (Order, error)
	ReadyOrderByUserAndProduct(ctx context.Context, userID, productID string) (Order, error)
	ReadyOrdersOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Order, error)
	UserByID(ctx context.Context, id string) (catalog.User, error)
	ProductByID(ctx context.Context, id string) (catalog.Product, error)
}

// DeadlineIndex schedules orders for expiry. Losing an entry is tolerable;
// the sweeper's database fallback picks up stragglers.
type DeadlineIndex interface {
	Add(ctx context.Context, orderID string, deadline time.Time) error
	Due(ctx context.Context, now time.Time, limit int64) ([]string, error)
	Remove(ctx context.Context, orderIDs ...string) error
}

// StockNotifier pushes remaining-quantity changes to live viewers.
type StockNotifier interface {
	NotifyStock(productID string, quantity int64)
}

// NopDeadlineIndex ignores every call; used when Redis is not configured.
type NopDeadlineIndex struct{}

func (NopDeadlineIndex) Add(context.Context, string, time.Time) error { return nil }
func (NopDeadlineIndex) Due(context.Context, time.Time, int64) ([]string, error) {
	return nil, nil
}
func (NopDeadlineIndex) Remove(context.Context, ...string) error { return nil }

// NopStockNotifier drops stock updates.
type NopStockNotifier struct{}

func (NopStockNotifier) NotifyStock(string, int64) {}

// Options tunes a Service. Zero values pick the defaults below.
type Options struct {
	Deadlines DeadlineIndex
	Events    events.Publisher
	Stock     StockNotifier
	Metrics   *observability.Metrics
	Logger    zerolog.Logger

	// Window is how long a READY order may stay unpaid.
	Window time.Duration
	// LockWait bounds queueing for the per-product lock.
	LockWait time.Duration
	// LockHold bounds how long a crashed holder can wedge the lock.
	LockHold time.Duration

	Now   func() time.Time
	NewID func() string
}

const (
	defaultWindow   = 10 * time.Minute
	defaultLockWait = 10 * time.Second
	defaultLockHold = 60 * time.Second
)

// Service serializes stock reservations per product and drives the order
// lifecycle: READY on creation, COMPLETED on approved payment, EXPIRED or
// CANCELLED with the stock returned.
type Service struct {
	store     Store
	locker    lock.Locker
	deadlines DeadlineIndex
	events    events.Publisher
	stock     StockNotifier
	metrics   *observability.Metrics
	logger    zerolog.Logger

	window   time.Duration
	lockWait time.Duration
	lockHold time.Duration

	now   func() time.Time
	newID func() string
}

// NewService constructs a Service.
func NewService(store Store, locker lock.Locker, opts Options) *Service {
	if opts.Deadlines == nil {
		opts.Deadlines = NopDeadlineIndex{}
	}
	if opts.Events == nil {
		opts.Events = events.NopPublisher{}
	}
	if opts.Stock == nil {
		opts.Stock = NopStockNotifier{}
	}
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	if opts.LockWait <= 0 {
		opts.LockWait = defaultLockWait
	}
	if opts.LockHold <= 0 {
		opts.LockHold = defaultLockHold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.NewString() }
	}
	return &Service{
		store:     store,
		locker:    locker,
		deadlines: opts.Deadlines,
		events:    opts.Events,
		stock:     opts.Stock,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		window:    opts.Window,
		lockWait:  opts.LockWait,
		lockHold:  opts.LockHold,
		now:       opts.Now,
		newID:     opts.NewID,
	}
}

// Window returns the configured payment window.
func (s *Service) Window() time.Duration { return s.window }

// CreateInput describes a reservation request.
type CreateInput struct {
	UserID      string
	ProductID   string
	BroadcastID string
	Quantity    int
}

func lockKey(productID string) string { return "product:" + productID }

// Create reserves stock and opens a READY order. The quantity check runs
// before the lock so garbage requests never queue. The per-product lease is
// held only for the reserve transaction; deadline indexing, events and the
// stock push happen after release.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if in.Quantity <= 0 {
		s.metrics.ObserveReservation(observability.OutcomeInvalid)
		return Order{}, ErrInvalidQuantity
	}
	if _, err := s.store.UserByID(ctx, in.UserID); err != nil {
		s.metrics.ObserveReservation(reservationOutcome(err))
		return Order{}, err
	}

	o := Order{
		ID:          s.newID(),
		UserID:      in.UserID,
		ProductID:   in.ProductID,
		BroadcastID: in.BroadcastID,
		Quantity:    in.Quantity,
		Status:      StatusReady,
		CreatedAt:   s.now(),
	}

	remaining, err := s.reserveLocked(ctx, o)
	if err != nil {
		s.metrics.ObserveReservation(reservationOutcome(err))
		return Order{}, err
	}
	s.metrics.ObserveReservation(observability.OutcomeCreated)

	if err := s.deadlines.Add(ctx, o.ID, o.CreatedAt.Add(s.window)); err != nil {
		s.logger.Warn().Err(err).Str("order_id", o.ID).Msg("index order deadline")
	}
	s.events.Publish(events.TypeOrderCreated, o.ProductID, orderPayload(o, remaining))
	s.stock.NotifyStock(o.ProductID, int64(remaining))

	s.logger.Info().
		Str("order_id", o.ID).
		Str("product_id", o.ProductID).
		Int("quantity", o.Quantity).
		Int("remaining", remaining).
		Msg("order created")
	return o, nil
}

func (s *Service) reserveLocked(ctx context.Context, o Order) (int, error) {
	lease, err := s.acquire(ctx, o.ProductID)
	if err != nil {
		return 0, err
	}
	defer s.release(lease, o.ProductID)

	return s.store.ReserveAndCreateOrder(ctx, o)
}

func (s *Service) acquire(ctx context.Context, productID string) (lock.Lease, error) {
	start := s.now()
	lease, err := s.locker.Acquire(ctx, lockKey(productID), s.lockWait, s.lockHold)
	s.metrics.ObserveLockWait(s.now().Sub(start))
	if err != nil {
		return nil, err
	}
	return lease, nil
}

func (s *Service) release(lease lock.Lease, productID string) {
	if err := lease.Release(); err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).Msg("release product lock")
	}
}

// CheckExpiry is the externally triggered expiry path: it looks up the
// caller's open order for the product and expires it if the payment window
// has lapsed. Returns true when the order was expired by this call.
func (s *Service) CheckExpiry(ctx context.Context, userID, productID string) (bool, error) {
	o, err := s.store.ReadyOrderByUserAndProduct(ctx, userID, productID)
	if err != nil {
		return false, err
	}
	if s.now().Before(o.CreatedAt.Add(s.window)) {
		return false, nil
	}
	if err := s.Expire(ctx, o); err != nil {
		return false, err
	}
	return true, nil
}

// CheckStock reports whether the product has any unit left. The read takes
// the same per-product lock as reservations so a caller never sees a
// quantity a concurrent reserve is about to consume.
func (s *Service) CheckStock(ctx context.Context, productID string) error {
	lease, err := s.acquire(ctx, productID)
	if err != nil {
		return fmt.Errorf("check stock for product %s: %w", productID, err)
	}
	p, lookupErr := s.store.ProductByID(ctx, productID)
	s.release(lease, productID)

	if lookupErr != nil {
		return lookupErr
	}
	if p.Quantity < 1 {
		return ErrInsufficientStock
	}
	return nil
}

// Expire returns an unpaid order's stock and marks it EXPIRED. A racing
// expirer that loses is a no-op. A lock timeout is returned as-is: the
// caller must not assume the order expired.
func (s *Service) Expire(ctx context.Context, o Order) error {
	lease, err := s.acquire(ctx, o.ProductID)
	if err != nil {
		return fmt.Errorf("expire order %s: %w", o.ID, err)
	}
	remaining, reclaimErr := s.store.ExpireOrder(ctx, o.ID)
	s.release(lease, o.ProductID)

	if errors.Is(reclaimErr, ErrOrderNotReady) {
		// Someone else already settled it; just drop the schedule entry.
		s.removeDeadline(ctx, o.ID)
		return nil
	}
	if reclaimErr != nil {
		return reclaimErr
	}

	s.metrics.ObserveOrderExpired()
	s.removeDeadline(ctx, o.ID)
	o.Status = StatusExpired
	s.events.Publish(events.TypeOrderExpired, o.ProductID, orderPayload(o, remaining))
	s.stock.NotifyStock(o.ProductID, int64(remaining))

	s.logger.Info().
		Str("order_id", o.ID).
		Str("product_id", o.ProductID).
		Int("remaining", remaining).
		Msg("order expired")
	return nil
}

// CancelReservation is the payment-failure compensation: it returns the
// order's stock and marks it CANCELLED.
func (s *Service) CancelReservation(ctx context.Context, orderID string) error {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	lease, err := s.acquire(ctx, o.ProductID)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", o.ID, err)
	}
	remaining, reclaimErr := s.store.CancelOrder(ctx, o.ID)
	s.release(lease, o.ProductID)

	if errors.Is(reclaimErr, ErrOrderNotReady) {
		s.removeDeadline(ctx, o.ID)
		return nil
	}
	if reclaimErr != nil {
		return reclaimErr
	}

	s.removeDeadline(ctx, o.ID)
	o.Status = StatusCancelled
	s.events.Publish(events.TypeOrderCancelled, o.ProductID, orderPayload(o, remaining))
	s.stock.NotifyStock(o.ProductID, int64(remaining))

	s.logger.Info().
		Str("order_id", o.ID).
		Str("product_id", o.ProductID).
		Int("remaining", remaining).
		Msg("order cancelled")
	return nil
}

// Complete confirms the order together with its payment in one transaction.
// Stock is untouched: the claim the order held simply becomes permanent.
func (s *Service) Complete(ctx context.Context, orderID, paymentID string, approvedAt time.Time) error {
	o, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.store.CompleteOrderWithPayment(ctx, orderID, paymentID, approvedAt); err != nil {
		return err
	}

	s.removeDeadline(ctx, orderID)
	o.Status = StatusCompleted
	s.events.Publish(events.TypeOrderCompleted, o.ProductID, orderPayload(o, -1))

	s.logger.Info().
		Str("order_id", orderID).
		Str("payment_id", paymentID).
		Msg("order completed")
	return nil
}

func (s *Service) removeDeadline(ctx context.Context, orderID string) {
	if err := s.deadlines.Remove(ctx, orderID); err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID).Msg("remove order deadline")
	}
}

func orderPayload(o Order, remaining int) events.OrderPayload {
	p := events.OrderPayload{
		OrderID:   o.ID,
		UserID:    o.UserID,
		ProductID: o.ProductID,
		Quantity:  int64(o.Quantity),
		Status:    string(o.Status),
	}
	if remaining >= 0 {
		p.Remaining = int64(remaining)
	}
	return p
}

func reservationOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return observability.OutcomeSoldOut
	case errors.Is(err, lock.ErrLockTimeout):
		return observability.OutcomeLockTimeout
	default:
		return observability.OutcomeError
	}
}
