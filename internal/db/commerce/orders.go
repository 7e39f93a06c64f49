package commercedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"liveshop/internal/orders"
)

// ReserveAndCreateOrder subtracts the order's quantity from the product and
// writes the READY order row in one transaction: either both persist or
// neither. Returns the product quantity remaining after the reservation.
// The caller must hold the product's lock.
func (s *Store) ReserveAndCreateOrder(ctx context.Context, o orders.Order) (remaining int, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var broadcastProduct string
		err := tx.QueryRowContext(ctx,
			`SELECT product_id FROM broadcasts WHERE id = $1`, o.BroadcastID,
		).Scan(&broadcastProduct)
		if errors.Is(err, sql.ErrNoRows) {
			return orders.ErrBroadcastNotFound
		}
		if err != nil {
			return fmt.Errorf("read broadcast: %w", err)
		}

		remaining, err = reserveStock(ctx, tx, o.ProductID, o.Quantity)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO orders (id, user_id, product_id, broadcast_id, quantity, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, o.UserID, o.ProductID, o.BroadcastID, o.Quantity, string(o.Status), o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// ExpireOrder reclaims an unpaid order's stock and marks it EXPIRED.
// Only a READY order is touched; a racing expirer gets ErrOrderNotReady and
// treats it as a no-op, so the release happens exactly once.
func (s *Store) ExpireOrder(ctx context.Context, orderID string) (remaining int, err error) {
	return s.reclaim(ctx, orderID, orders.StatusExpired)
}

// CancelOrder reclaims stock after a definitive payment failure and marks
// the order CANCELLED. Same exactly-once guard as ExpireOrder.
func (s *Store) CancelOrder(ctx context.Context, orderID string) (remaining int, err error) {
	return s.reclaim(ctx, orderID, orders.StatusCancelled)
}

func (s *Store) reclaim(ctx context.Context, orderID string, to orders.Status) (remaining int, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			productID string
			qty       int
		)
		err := tx.QueryRowContext(ctx,
			`SELECT product_id, quantity FROM orders WHERE id = $1 AND status = $2 FOR UPDATE`,
			orderID, string(orders.StatusReady),
		).Scan(&productID, &qty)
		if errors.Is(err, sql.ErrNoRows) {
			return s.readyMissReason(ctx, tx, orderID)
		}
		if err != nil {
			return fmt.Errorf("read order for reclaim: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $2 WHERE id = $1`, orderID, string(to),
		); err != nil {
			return fmt.Errorf("mark order %s: %w", to, err)
		}

		remaining, err = releaseStock(ctx, tx, productID, qty)
		return err
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// readyMissReason distinguishes a vanished order from one that already left
// READY, so callers can no-op on the latter.
func (s *Store) readyMissReason(ctx context.Context, tx *sql.Tx, orderID string) error {
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = $1`, orderID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return orders.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("read order status: %w", err)
	}
	return orders.ErrOrderNotReady
}

// OrderByID fetches a single order.
func (s *Store) OrderByID(ctx context.Context, id string) (orders.Order, error) {
	return s.scanOrder(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, broadcast_id, quantity, status, created_at
		 FROM orders WHERE id = $1`, id))
}

// ReadyOrderByUserAndProduct fetches the user's open claim on a product, if
// any. The expiry check entry point resolves orders through it.
func (s *Store) ReadyOrderByUserAndProduct(ctx context.Context, userID, productID string) (orders.Order, error) {
	return s.scanOrder(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, broadcast_id, quantity, status, created_at
		 FROM orders
		 WHERE user_id = $1 AND product_id = $2 AND status = $3
		 ORDER BY created_at ASC LIMIT 1`,
		userID, productID, string(orders.StatusReady)))
}

// ReadyOrdersOlderThan lists READY orders created at or before the cutoff.
// The sweeper uses it as the durable fallback behind the Redis deadline
// index.
func (s *Store) ReadyOrdersOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]orders.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, product_id, broadcast_id, quantity, status, created_at
		 FROM orders
		 WHERE status = $1 AND created_at <= $2
		 ORDER BY created_at ASC LIMIT $3`,
		string(orders.StatusReady), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		var (
			o      orders.Order
			status string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.ProductID, &o.BroadcastID, &o.Quantity, &status, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Status = orders.Status(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanOrder(row rowScanner) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.BroadcastID, &o.Quantity, &status, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if err != nil {
		return orders.Order{}, err
	}
	o.Status = orders.Status(status)
	return o, nil
}
