package main

import (
	"context"

	"liveshop/cmd/server/config"
	"liveshop/internal/events"

	"github.com/rs/zerolog"
)

func buildPublisher(ctx context.Context, logger zerolog.Logger) (events.Publisher, func(), error) {
	cfg, err := config.LoadKafka()
	if err != nil {
		return nil, nil, err
	}
	if len(cfg.Brokers) == 0 {
		logger.Warn().Msg("KAFKA_BROKERS not set, lifecycle events are dropped")
		return events.NopPublisher{}, func() {}, nil
	}

	pub := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, cfg.Buffer, logger)
	runCtx, cancel := context.WithCancel(ctx)
	go pub.Run(runCtx)

	// cleanup cancels the drain loop and blocks until queued events flush.
	cleanup := func() {
		cancel()
		pub.Wait()
	}
	return pub, cleanup, nil
}
