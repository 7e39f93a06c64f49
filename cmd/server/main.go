package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liveshop/cmd/server/config"
	"liveshop/internal/httpx"
	"liveshop/internal/observability"
	"liveshop/internal/orders"
	"liveshop/internal/payments"
	"liveshop/internal/realtime"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "liveshop").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func run(ctx context.Context, logger zerolog.Logger) error {
	store, cleanupStore, err := buildStore(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanupStore()

	locker, cleanupLocker, err := buildLocker(logger)
	if err != nil {
		return err
	}
	defer cleanupLocker()

	deadlines, cleanupIndex, err := buildDeadlineIndex(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanupIndex()

	publisher, cleanupPublisher, err := buildPublisher(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanupPublisher()

	ordersCfg, err := config.LoadOrders()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	hub := realtime.NewHub()
	go hub.Run()

	orderService := orders.NewService(store, locker, orders.Options{
		Deadlines: deadlines,
		Events:    publisher,
		Stock:     hub,
		Metrics:   metrics,
		Logger:    logger,
		Window:    ordersCfg.Window,
		LockWait:  ordersCfg.LockWait,
		LockHold:  ordersCfg.LockHold,
	})

	sweeper := orders.NewSweeper(orderService, ordersCfg.SweepInterval, ordersCfg.SweepBatch)
	go sweeper.Run(ctx)

	providers, err := buildProviders(logger)
	if err != nil {
		return err
	}
	paymentService := payments.NewService(store, providers, orderService, payments.Options{
		Events:  publisher,
		Metrics: metrics,
		Logger:  logger,
	})

	httpCfg := config.LoadHTTP()
	router := httpx.NewRouter(httpx.Deps{
		Orders:              orderService,
		Payments:            paymentService,
		Hub:                 hub,
		Metrics:             metrics,
		CompleteRedirectURL: httpCfg.CompleteRedirectURL,
		FailRedirectURL:     httpCfg.FailRedirectURL,
	})

	srv := &http.Server{
		Addr:    httpCfg.Addr,
		Handler: router,
	}

	obsSrv := startObservabilityServer(metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpCfg.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if obsSrv != nil {
			obsCtx, obsCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer obsCancel()
			_ = obsSrv.Shutdown(obsCtx)
		}
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startObservabilityServer serves /metrics on a side listener when OBS_ADDR
// is set, keeping scrapes off the public port.
func startObservabilityServer(metrics *observability.Metrics, logger zerolog.Logger) *http.Server {
	cfg := config.LoadObservability()
	if cfg.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	return srv
}
