// Package commercedb persists the reservation core's state in Postgres:
// products (the inventory ledger), orders, payments, and the collaborator
// lookups (broadcasts, users). Stock mutations happen inside transactions
// that also write the order row, so a reservation and its order are never
// separately observable.
package commercedb

import (
	"context"
	"database/sql"
	"fmt"
)

// Store is the Postgres-backed store for the reservation core.
type Store struct {
	db *sql.DB
}

// NewStore constructs a Store on an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewStoreWithSchema initializes the schema then returns the store.
func NewStoreWithSchema(ctx context.Context, db *sql.DB) (*Store, error) {
	store := NewStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price BIGINT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS broadcasts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			streamer_id TEXT NOT NULL,
			product_id TEXT NOT NULL REFERENCES products(id),
			air_time TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			product_id TEXT NOT NULL REFERENCES products(id),
			broadcast_id TEXT NOT NULL REFERENCES broadcasts(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			order_id TEXT NOT NULL REFERENCES orders(id),
			amount BIGINT NOT NULL,
			order_quantity INTEGER NOT NULL,
			method TEXT NOT NULL,
			tid TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			shipping_address TEXT NOT NULL DEFAULT '',
			delivery_request TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			approved_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_ready_age
			ON orders (created_at) WHERE status = 'READY'`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
