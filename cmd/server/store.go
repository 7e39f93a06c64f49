package main

import (
	"context"
	"database/sql"
	"os"
	"strings"

	commercedb "liveshop/internal/db/commerce"
	memorydb "liveshop/internal/db/memory"
	"liveshop/internal/orders"
	"liveshop/internal/payments"

	"github.com/rs/zerolog"
)

// commerceStore is the persistence surface the order and payment services
// share. Both the Postgres store and the in-memory store satisfy it.
type commerceStore interface {
	orders.Store
	payments.Store
}

var openCommerceDB = func(driver, dsn string) (*sql.DB, error) {
	return sql.Open(driver, dsn)
}

func buildStore(ctx context.Context, logger zerolog.Logger) (commerceStore, func(), error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory store; data is lost on restart")
		return memorydb.NewStore(), func() {}, nil
	}

	db, err := openCommerceDB("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}

	store, err := commercedb.NewStoreWithSchema(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("close commerce db")
		}
	}
	return store, cleanup, nil
}
