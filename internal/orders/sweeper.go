package orders

import (
	"context"
	"errors"
	"time"
)

// Sweeper expires overdue orders in the background. It reads due order IDs
// from the deadline index and falls back to a database scan when the index
// is empty or unavailable, so an order never stays READY forever just
// because a Redis entry was lost.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	batch    int
}

// NewSweeper constructs a Sweeper over the given service.
func NewSweeper(svc *Service, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{svc: svc, interval: interval, batch: batch}
}

// Run sweeps on the configured interval until ctx is canceled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep expires everything currently overdue and returns how many orders it
// expired. Per-order failures are logged and skipped; the next sweep retries
// them.
func (w *Sweeper) Sweep(ctx context.Context) int {
	svc := w.svc
	now := svc.now()

	due, err := svc.deadlines.Due(ctx, now, int64(w.batch))
	if err != nil {
		svc.logger.Warn().Err(err).Msg("read deadline index")
	}

	expired := 0
	for _, id := range due {
		o, err := svc.store.OrderByID(ctx, id)
		if errors.Is(err, ErrOrderNotFound) {
			svc.removeDeadline(ctx, id)
			continue
		}
		if err != nil {
			svc.logger.Error().Err(err).Str("order_id", id).Msg("load due order")
			continue
		}
		if w.expire(ctx, o) {
			expired++
		}
	}

	// Orders the index lost still show up in the durable scan.
	if len(due) == 0 {
		stale, err := svc.store.ReadyOrdersOlderThan(ctx, now.Add(-svc.window), w.batch)
		if err != nil {
			svc.logger.Error().Err(err).Msg("scan overdue orders")
			return expired
		}
		for _, o := range stale {
			if w.expire(ctx, o) {
				expired++
			}
		}
	}
	return expired
}

func (w *Sweeper) expire(ctx context.Context, o Order) bool {
	if err := w.svc.Expire(ctx, o); err != nil {
		w.svc.logger.Error().Err(err).Str("order_id", o.ID).Msg("expire overdue order")
		return false
	}
	return true
}
