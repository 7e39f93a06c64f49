// Package catalog holds the collaborator entities the reservation core
// reads: products, broadcasts, and users. Their CRUD surfaces live outside
// this system; only lookup (and the lock-guarded quantity mutation done by
// the ledger) touch these rows here.
package catalog

import "time"

// Product is a limited-quantity item sold during a broadcast.
// Quantity is mutated only inside the inventory ledger's transactions while
// the per-product lock is held, and never drops below zero.
type Product struct {
	ID        string
	Name      string
	Price     int
	Quantity  int
	CreatedAt time.Time
}

// Broadcast is the live session a product is sold in.
type Broadcast struct {
	ID         string
	Title      string
	StreamerID string
	ProductID  string
	AirTime    time.Time
}

// User is a buyer.
type User struct {
	ID    string
	Name  string
	Email string
}
