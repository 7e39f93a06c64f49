package commercedb

import (
	"context"
	"database/sql"
	"errors"

	"liveshop/internal/catalog"
	"liveshop/internal/orders"
	"liveshop/internal/payments"
)

// Collaborator lookups. CRUD for these rows lives outside the reservation
// core; only reads are needed here.

// ProductByID fetches a product. The quantity it carries is only safe for a
// reservation decision when read inside a lock-guarded transaction; this
// lookup is for display and validation.
func (s *Store) ProductByID(ctx context.Context, id string) (catalog.Product, error) {
	var p catalog.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, price, quantity, created_at FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, orders.ErrProductNotFound
	}
	if err != nil {
		return catalog.Product{}, err
	}
	return p, nil
}

// BroadcastByID fetches a broadcast.
func (s *Store) BroadcastByID(ctx context.Context, id string) (catalog.Broadcast, error) {
	var b catalog.Broadcast
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, streamer_id, product_id, air_time FROM broadcasts WHERE id = $1`, id,
	).Scan(&b.ID, &b.Title, &b.StreamerID, &b.ProductID, &b.AirTime)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Broadcast{}, orders.ErrBroadcastNotFound
	}
	if err != nil {
		return catalog.Broadcast{}, err
	}
	return b, nil
}

// UserByID fetches a user.
func (s *Store) UserByID(ctx context.Context, id string) (catalog.User, error) {
	var u catalog.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.User{}, payments.ErrUserNotFound
	}
	if err != nil {
		return catalog.User{}, err
	}
	return u, nil
}
