package commercedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"liveshop/internal/orders"
)

// The inventory ledger: decrement with a floor at zero, increment on
// reclamation. Both run inside a caller-owned transaction and assume the
// caller holds the product's distributed lock; the quantity predicate on the
// decrement is a final guard, not a locking strategy.

func reserveStock(ctx context.Context, tx *sql.Tx, productID string, qty int) (remaining int, err error) {
	var available int
	err = tx.QueryRowContext(ctx,
		`SELECT quantity FROM products WHERE id = $1 FOR UPDATE`, productID,
	).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, orders.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read product quantity: %w", err)
	}
	if available < qty {
		return 0, orders.ErrInsufficientStock
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET quantity = quantity - $2 WHERE id = $1 AND quantity >= $2`,
		productID, qty,
	)
	if err != nil {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected != 1 {
		return 0, orders.ErrInsufficientStock
	}
	return available - qty, nil
}

func releaseStock(ctx context.Context, tx *sql.Tx, productID string, qty int) (remaining int, err error) {
	err = tx.QueryRowContext(ctx,
		`UPDATE products SET quantity = quantity + $2 WHERE id = $1 RETURNING quantity`,
		productID, qty,
	).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, orders.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("return stock: %w", err)
	}
	return remaining, nil
}
