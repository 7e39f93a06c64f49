// Package memorydb is an in-memory stand-in for the Postgres commerce store.
// The server falls back to it when no database is configured, and the
// service tests exercise the full reservation flow against it.
package memorydb

import (
	"context"
	"sort"
	"sync"
	"time"

	"liveshop/internal/catalog"
	"liveshop/internal/orders"
	"liveshop/internal/payments"
)

// Store keeps every entity in maps guarded by one mutex, mirroring the
// transactional behavior of the SQL store: each method is atomic.
type Store struct {
	mu         sync.Mutex
	users      map[string]catalog.User
	products   map[string]catalog.Product
	broadcasts map[string]catalog.Broadcast
	orders     map[string]orders.Order
	payments   map[string]payments.Payment
	tids       map[string]string // tid -> payment ID
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		users:      make(map[string]catalog.User),
		products:   make(map[string]catalog.Product),
		broadcasts: make(map[string]catalog.Broadcast),
		orders:     make(map[string]orders.Order),
		payments:   make(map[string]payments.Payment),
		tids:       make(map[string]string),
	}
}

// PutUser seeds a user.
func (s *Store) PutUser(u catalog.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutProduct seeds a product.
func (s *Store) PutProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// PutBroadcast seeds a broadcast.
func (s *Store) PutBroadcast(b catalog.Broadcast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts[b.ID] = b
}

func (s *Store) UserByID(_ context.Context, id string) (catalog.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return catalog.User{}, payments.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) ProductByID(_ context.Context, id string) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, orders.ErrProductNotFound
	}
	return p, nil
}

func (s *Store) BroadcastByID(_ context.Context, id string) (catalog.Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return catalog.Broadcast{}, orders.ErrBroadcastNotFound
	}
	return b, nil
}

// ReserveAndCreateOrder subtracts stock and records the order atomically.
func (s *Store) ReserveAndCreateOrder(_ context.Context, o orders.Order) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.broadcasts[o.BroadcastID]; !ok {
		return 0, orders.ErrBroadcastNotFound
	}
	p, ok := s.products[o.ProductID]
	if !ok {
		return 0, orders.ErrProductNotFound
	}
	if p.Quantity < o.Quantity {
		return 0, orders.ErrInsufficientStock
	}
	p.Quantity -= o.Quantity
	s.products[o.ProductID] = p
	s.orders[o.ID] = o
	return p.Quantity, nil
}

// ExpireOrder returns a READY order's stock and marks it EXPIRED.
func (s *Store) ExpireOrder(_ context.Context, orderID string) (int, error) {
	return s.reclaim(orderID, orders.StatusExpired)
}

// CancelOrder returns a READY order's stock and marks it CANCELLED.
func (s *Store) CancelOrder(_ context.Context, orderID string) (int, error) {
	return s.reclaim(orderID, orders.StatusCancelled)
}

func (s *Store) reclaim(orderID string, to orders.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return 0, orders.ErrOrderNotFound
	}
	if o.Status != orders.StatusReady {
		return 0, orders.ErrOrderNotReady
	}
	o.Status = to
	s.orders[orderID] = o

	p := s.products[o.ProductID]
	p.Quantity += o.Quantity
	s.products[o.ProductID] = p
	return p.Quantity, nil
}

func (s *Store) OrderByID(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) ReadyOrderByUserAndProduct(_ context.Context, userID, productID string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found bool
		best  orders.Order
	)
	for _, o := range s.orders {
		if o.UserID != userID || o.ProductID != productID || o.Status != orders.StatusReady {
			continue
		}
		if !found || o.CreatedAt.Before(best.CreatedAt) {
			best, found = o, true
		}
	}
	if !found {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return best, nil
}

func (s *Store) ReadyOrdersOlderThan(_ context.Context, cutoff time.Time, limit int) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []orders.Order
	for _, o := range s.orders {
		if o.Status == orders.StatusReady && !o.CreatedAt.After(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreatePayment stores a REQUESTED payment, rejecting a reused tid.
func (s *Store) CreatePayment(_ context.Context, p payments.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tids[p.TID]; ok {
		return payments.ErrDuplicateTransactionID
	}
	s.payments[p.ID] = p
	s.tids[p.TID] = p.ID
	return nil
}

// CompleteOrderWithPayment moves the payment to COMPLETED and the order to
// COMPLETED together, or neither.
func (s *Store) CompleteOrderWithPayment(_ context.Context, orderID, paymentID string, approvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok || p.Status != payments.StatusRequested {
		return payments.ErrPaymentNotFound
	}
	o, ok := s.orders[orderID]
	if !ok || o.Status != orders.StatusReady {
		return orders.ErrOrderNotReady
	}

	p.Status = payments.StatusCompleted
	p.ApprovedAt = approvedAt
	o.Status = orders.StatusCompleted
	s.payments[paymentID] = p
	s.orders[orderID] = o
	return nil
}

// FailPayment marks the payment FAILED unless it already completed.
func (s *Store) FailPayment(_ context.Context, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return payments.ErrPaymentNotFound
	}
	if p.Status == payments.StatusCompleted {
		return payments.ErrPaymentNotFound
	}
	p.Status = payments.StatusFailed
	s.payments[paymentID] = p
	return nil
}

func (s *Store) PaymentByOrderID(_ context.Context, orderID string) (payments.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found bool
		best  payments.Payment
	)
	for _, p := range s.payments {
		if p.OrderID != orderID {
			continue
		}
		if !found || p.CreatedAt.After(best.CreatedAt) {
			best, found = p, true
		}
	}
	if !found {
		return payments.Payment{}, payments.ErrPaymentNotFound
	}
	return best, nil
}

func (s *Store) PaymentByTID(_ context.Context, tid string) (payments.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.tids[tid]
	if !ok {
		return payments.Payment{}, payments.ErrPaymentNotFound
	}
	return s.payments[id], nil
}
