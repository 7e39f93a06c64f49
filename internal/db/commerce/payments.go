package commercedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"liveshop/internal/orders"
	"liveshop/internal/payments"
)

// CreatePayment persists a REQUESTED payment. The tid uniqueness check and
// the insert are one statement, so a replayed provider tid can never produce
// a second durable row.
func (s *Store) CreatePayment(ctx context.Context, p payments.Payment) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, user_id, order_id, amount, order_quantity, method, tid, status, shipping_address, delivery_request, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (tid) DO NOTHING`,
		p.ID, p.UserID, p.OrderID, p.Amount, p.OrderQuantity, string(p.Method),
		p.TID, string(p.Status), p.ShippingAddress, p.DeliveryRequest, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return payments.ErrDuplicateTransactionID
	}
	return nil
}

// CompleteOrderWithPayment commits the approval: payment REQUESTED→COMPLETED
// with its approval timestamp, and order READY→COMPLETED, in one
// transaction. Status predicates on both updates keep the transition
// exactly-once; no stock moves here.
func (s *Store) CompleteOrderWithPayment(ctx context.Context, orderID, paymentID string, approvedAt time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = $2, approved_at = $3 WHERE id = $1 AND status = $4`,
			paymentID, string(payments.StatusCompleted), approvedAt, string(payments.StatusRequested),
		)
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return payments.ErrPaymentNotFound
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $2 WHERE id = $1 AND status = $3`,
			orderID, string(orders.StatusCompleted), string(orders.StatusReady),
		)
		if err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return orders.ErrOrderNotReady
		}
		return nil
	})
}

// FailPayment marks a payment FAILED. A COMPLETED payment is never demoted.
func (s *Store) FailPayment(ctx context.Context, paymentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $2 WHERE id = $1 AND status <> $3`,
		paymentID, string(payments.StatusFailed), string(payments.StatusCompleted),
	)
	if err != nil {
		return fmt.Errorf("fail payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return payments.ErrPaymentNotFound
	}
	return nil
}

// PaymentByOrderID fetches the payment attached to an order.
func (s *Store) PaymentByOrderID(ctx context.Context, orderID string) (payments.Payment, error) {
	return s.scanPayment(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, order_id, amount, order_quantity, method, tid, status, shipping_address, delivery_request, created_at, approved_at
		 FROM payments WHERE order_id = $1
		 ORDER BY created_at DESC LIMIT 1`, orderID))
}

// PaymentByTID fetches a payment by its provider transaction id.
func (s *Store) PaymentByTID(ctx context.Context, tid string) (payments.Payment, error) {
	return s.scanPayment(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, order_id, amount, order_quantity, method, tid, status, shipping_address, delivery_request, created_at, approved_at
		 FROM payments WHERE tid = $1`, tid))
}

func (s *Store) scanPayment(row rowScanner) (payments.Payment, error) {
	var (
		p          payments.Payment
		method     string
		status     string
		approvedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.OrderID, &p.Amount, &p.OrderQuantity, &method,
		&p.TID, &status, &p.ShippingAddress, &p.DeliveryRequest, &p.CreatedAt, &approvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return payments.Payment{}, payments.ErrPaymentNotFound
	}
	if err != nil {
		return payments.Payment{}, err
	}
	p.Method = payments.Method(method)
	p.Status = payments.Status(status)
	if approvedAt.Valid {
		p.ApprovedAt = approvedAt.Time
	}
	return p, nil
}
