package main

import (
	"liveshop/cmd/server/config"
	"liveshop/internal/payments"
	"liveshop/internal/payments/provider/kakao"
	"liveshop/internal/payments/provider/toss"

	"github.com/rs/zerolog"
)

func buildProviders(logger zerolog.Logger) (map[payments.Method]payments.Provider, error) {
	retryCfg, err := config.LoadProvider()
	if err != nil {
		return nil, err
	}

	providers := make(map[payments.Method]payments.Provider)

	kakaoCfg, err := config.LoadKakao()
	if err != nil {
		return nil, err
	}
	if kakaoCfg.Enabled() {
		client := kakao.NewClient(kakao.Config{
			BaseURL:     kakaoCfg.BaseURL,
			CID:         kakaoCfg.CID,
			SecretKey:   kakaoCfg.SecretKey,
			ApprovalURL: kakaoCfg.ApprovalURL,
			CancelURL:   kakaoCfg.CancelURL,
			FailURL:     kakaoCfg.FailURL,
		}, nil)
		providers[payments.MethodKakaoPay] = hardened(client, retryCfg)
	}

	tossCfg, err := config.LoadToss()
	if err != nil {
		return nil, err
	}
	if tossCfg.Enabled() {
		client := toss.NewClient(toss.Config{
			BaseURL:        tossCfg.BaseURL,
			ClientKey:      tossCfg.ClientKey,
			SecretKey:      tossCfg.SecretKey,
			RetURL:         tossCfg.RetURL,
			RetCancelURL:   tossCfg.RetCancelURL,
			ResultCallback: tossCfg.ResultCallback,
		}, nil)
		providers[payments.MethodTossPay] = hardened(client, retryCfg)
	}

	if len(providers) == 0 {
		logger.Warn().Msg("no payment providers configured, payment endpoints will reject every method")
	}
	return providers, nil
}

// hardened wraps a provider client with a rate limiter, a circuit breaker
// and retries on transient failures.
func hardened(base payments.Provider, cfg config.ProviderConfig) payments.Provider {
	limiter := payments.NewRateLimiter(cfg.RateLimitInterval, cfg.RateLimitBurst)
	breaker := payments.NewCircuitBreaker(payments.CircuitBreakerConfig{
		MaxFailures:  cfg.BreakerMaxFailures,
		ResetTimeout: cfg.BreakerResetTimeout,
	})
	return payments.NewReliableProvider(base, limiter, breaker, payments.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
	})
}
