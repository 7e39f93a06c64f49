package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// HTTPConfig holds the public HTTP server settings.
type HTTPConfig struct {
	Addr                string
	CompleteRedirectURL string
	FailRedirectURL     string
}

// OrdersConfig holds reservation lifecycle tuning.
type OrdersConfig struct {
	Window        time.Duration
	LockWait      time.Duration
	LockHold      time.Duration
	SweepInterval time.Duration
	SweepBatch    int
}

// RedisConfig holds Redis connection settings for the deadline index.
// An empty URL disables Redis and the server falls back to database scans.
type RedisConfig struct {
	URL                string
	DeadlineKey        string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	EnableOTel         bool
	TLSConfig          *tls.Config
}

// ZooKeeperConfig holds the distributed lock ensemble settings. Empty
// Servers disables ZooKeeper and the server uses an in-process locker.
type ZooKeeperConfig struct {
	Servers        []string
	SessionTimeout time.Duration
	Root           string
}

// KafkaConfig holds event publishing settings. Empty Brokers disables
// Kafka and lifecycle events are dropped.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Buffer  int
}

// KakaoConfig holds KakaoPay credentials and callback URLs.
type KakaoConfig struct {
	BaseURL     string
	CID         string
	SecretKey   string
	ApprovalURL string
	CancelURL   string
	FailURL     string
}

// Enabled reports whether KakaoPay credentials are configured.
func (c KakaoConfig) Enabled() bool { return c.CID != "" }

// TossConfig holds TossPay credentials and callback URLs.
type TossConfig struct {
	BaseURL        string
	ClientKey      string
	SecretKey      string
	RetURL         string
	RetCancelURL   string
	ResultCallback string
}

// Enabled reports whether TossPay credentials are configured.
func (c TossConfig) Enabled() bool { return c.ClientKey != "" }

// ObservabilityConfig holds the optional side listener for metrics. An
// empty Addr leaves /metrics on the main router only.
type ObservabilityConfig struct {
	Addr string
}

// LoadObservability reads the metrics side listener address from env.
func LoadObservability() ObservabilityConfig {
	return ObservabilityConfig{Addr: strings.TrimSpace(os.Getenv("OBS_ADDR"))}
}

// ProviderConfig holds retry and circuit breaker tuning for outbound
// payment provider calls.
type ProviderConfig struct {
	MaxAttempts         int
	RetryBaseDelay      time.Duration
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
	RateLimitInterval   time.Duration
	RateLimitBurst      int
}

// LoadHTTP reads the HTTP server settings from env.
func LoadHTTP() HTTPConfig {
	cfg := HTTPConfig{
		Addr:                strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		CompleteRedirectURL: strings.TrimSpace(os.Getenv("PAYMENT_COMPLETE_REDIRECT_URL")),
		FailRedirectURL:     strings.TrimSpace(os.Getenv("PAYMENT_FAIL_REDIRECT_URL")),
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.CompleteRedirectURL == "" {
		cfg.CompleteRedirectURL = "/"
	}
	if cfg.FailRedirectURL == "" {
		cfg.FailRedirectURL = "/"
	}
	return cfg
}

// LoadOrders reads reservation lifecycle tuning from env.
func LoadOrders() (OrdersConfig, error) {
	cfg := OrdersConfig{
		Window:        10 * time.Minute,
		LockWait:      10 * time.Second,
		LockHold:      60 * time.Second,
		SweepInterval: 30 * time.Second,
		SweepBatch:    100,
	}

	window, err := optionalDuration("ORDER_EXPIRY_WINDOW")
	if err != nil {
		return cfg, err
	}
	if window != nil {
		cfg.Window = *window
	}

	wait, err := optionalDuration("LOCK_WAIT_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if wait != nil {
		cfg.LockWait = *wait
	}

	hold, err := optionalDuration("LOCK_HOLD_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if hold != nil {
		cfg.LockHold = *hold
	}

	interval, err := optionalDuration("SWEEP_INTERVAL")
	if err != nil {
		return cfg, err
	}
	if interval != nil {
		cfg.SweepInterval = *interval
	}

	batch, err := optionalInt("SWEEP_BATCH")
	if err != nil {
		return cfg, err
	}
	if batch != nil {
		cfg.SweepBatch = *batch
	}

	return cfg, nil
}

// LoadRedis reads Redis config from env.
func LoadRedis() (RedisConfig, error) {
	cfg := RedisConfig{
		URL:                strings.TrimSpace(os.Getenv("REDIS_URL")),
		DeadlineKey:        strings.TrimSpace(os.Getenv("REDIS_DEADLINE_KEY")),
		HealthcheckTimeout: 3 * time.Second,
	}

	var err error
	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, err
	}

	healthcheck, err := optionalDuration("REDIS_HEALTHCHECK_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if healthcheck != nil {
		cfg.HealthcheckTimeout = *healthcheck
	}

	if cfg.EnableOTel, err = optionalBool("REDIS_OTEL"); err != nil {
		return cfg, err
	}

	if cfg.TLSConfig, err = loadRedisTLSFromEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadZooKeeper reads the lock ensemble settings from env.
func LoadZooKeeper() (ZooKeeperConfig, error) {
	cfg := ZooKeeperConfig{
		Servers:        splitList(os.Getenv("ZK_SERVERS")),
		Root:           strings.TrimSpace(os.Getenv("ZK_LOCK_ROOT")),
		SessionTimeout: 5 * time.Second,
	}

	timeout, err := optionalDuration("ZK_SESSION_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if timeout != nil {
		cfg.SessionTimeout = *timeout
	}

	return cfg, nil
}

// LoadKafka reads event publishing settings from env. The topic is
// required once brokers are configured.
func LoadKafka() (KafkaConfig, error) {
	cfg := KafkaConfig{
		Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
		Topic:   strings.TrimSpace(os.Getenv("KAFKA_TOPIC")),
		Buffer:  256,
	}
	if len(cfg.Brokers) == 0 {
		return cfg, nil
	}
	if cfg.Topic == "" {
		return cfg, errors.New("KAFKA_TOPIC is required")
	}

	buf, err := optionalInt("KAFKA_BUFFER")
	if err != nil {
		return cfg, err
	}
	if buf != nil {
		cfg.Buffer = *buf
	}

	return cfg, nil
}

// LoadKakao reads KakaoPay settings from env. A missing CID and secret
// disables the provider; partial credentials are an error.
func LoadKakao() (KakaoConfig, error) {
	cfg := KakaoConfig{
		BaseURL:     strings.TrimSpace(os.Getenv("KAKAO_BASE_URL")),
		CID:         strings.TrimSpace(os.Getenv("KAKAO_CID")),
		SecretKey:   strings.TrimSpace(os.Getenv("KAKAO_SECRET_KEY")),
		ApprovalURL: strings.TrimSpace(os.Getenv("KAKAO_APPROVAL_URL")),
		CancelURL:   strings.TrimSpace(os.Getenv("KAKAO_CANCEL_URL")),
		FailURL:     strings.TrimSpace(os.Getenv("KAKAO_FAIL_URL")),
	}
	if cfg.CID == "" && cfg.SecretKey == "" {
		return cfg, nil
	}
	if cfg.CID == "" {
		return cfg, errors.New("KAKAO_CID is required")
	}
	if cfg.SecretKey == "" {
		return cfg, errors.New("KAKAO_SECRET_KEY is required")
	}
	if cfg.ApprovalURL == "" {
		return cfg, errors.New("KAKAO_APPROVAL_URL is required")
	}
	if cfg.CancelURL == "" {
		return cfg, errors.New("KAKAO_CANCEL_URL is required")
	}
	if cfg.FailURL == "" {
		return cfg, errors.New("KAKAO_FAIL_URL is required")
	}
	return cfg, nil
}

// LoadToss reads TossPay settings from env. A missing client key and
// secret disables the provider; partial credentials are an error.
func LoadToss() (TossConfig, error) {
	cfg := TossConfig{
		BaseURL:        strings.TrimSpace(os.Getenv("TOSS_BASE_URL")),
		ClientKey:      strings.TrimSpace(os.Getenv("TOSS_CLIENT_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("TOSS_SECRET_KEY")),
		RetURL:         strings.TrimSpace(os.Getenv("TOSS_RET_URL")),
		RetCancelURL:   strings.TrimSpace(os.Getenv("TOSS_RET_CANCEL_URL")),
		ResultCallback: strings.TrimSpace(os.Getenv("TOSS_RESULT_CALLBACK")),
	}
	if cfg.ClientKey == "" && cfg.SecretKey == "" {
		return cfg, nil
	}
	if cfg.ClientKey == "" {
		return cfg, errors.New("TOSS_CLIENT_KEY is required")
	}
	if cfg.SecretKey == "" {
		return cfg, errors.New("TOSS_SECRET_KEY is required")
	}
	if cfg.RetURL == "" {
		return cfg, errors.New("TOSS_RET_URL is required")
	}
	if cfg.RetCancelURL == "" {
		return cfg, errors.New("TOSS_RET_CANCEL_URL is required")
	}
	return cfg, nil
}

// LoadProvider reads the outbound provider client tuning from env.
func LoadProvider() (ProviderConfig, error) {
	cfg := ProviderConfig{
		MaxAttempts:         3,
		RetryBaseDelay:      200 * time.Millisecond,
		BreakerMaxFailures:  5,
		BreakerResetTimeout: 30 * time.Second,
		RateLimitInterval:   50 * time.Millisecond,
		RateLimitBurst:      20,
	}

	attempts, err := optionalInt("PROVIDER_MAX_ATTEMPTS")
	if err != nil {
		return cfg, err
	}
	if attempts != nil {
		cfg.MaxAttempts = *attempts
	}

	delay, err := optionalDuration("PROVIDER_RETRY_BASE_DELAY")
	if err != nil {
		return cfg, err
	}
	if delay != nil {
		cfg.RetryBaseDelay = *delay
	}

	failures, err := optionalInt("PROVIDER_BREAKER_MAX_FAILURES")
	if err != nil {
		return cfg, err
	}
	if failures != nil {
		cfg.BreakerMaxFailures = *failures
	}

	reset, err := optionalDuration("PROVIDER_BREAKER_RESET_TIMEOUT")
	if err != nil {
		return cfg, err
	}
	if reset != nil {
		cfg.BreakerResetTimeout = *reset
	}

	interval, err := optionalDuration("PROVIDER_RATE_LIMIT_INTERVAL")
	if err != nil {
		return cfg, err
	}
	if interval != nil {
		cfg.RateLimitInterval = *interval
	}

	burst, err := optionalInt("PROVIDER_RATE_LIMIT_BURST")
	if err != nil {
		return cfg, err
	}
	if burst != nil {
		cfg.RateLimitBurst = *burst
	}

	return cfg, nil
}

func loadRedisTLSFromEnv() (*tls.Config, error) {
	caFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CA_FILE"))
	certFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CERT_FILE"))
	keyFile := strings.TrimSpace(os.Getenv("REDIS_TLS_KEY_FILE"))
	serverName := strings.TrimSpace(os.Getenv("REDIS_TLS_SERVER_NAME"))
	insecureStr := strings.TrimSpace(os.Getenv("REDIS_TLS_INSECURE_SKIP_VERIFY"))

	if caFile == "" && certFile == "" && keyFile == "" && serverName == "" && insecureStr == "" {
		return nil, nil
	}
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("REDIS_TLS_CERT_FILE and REDIS_TLS_KEY_FILE must be set together")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if insecureStr != "" {
		insecure, err := strconv.ParseBool(insecureStr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_TLS_INSECURE_SKIP_VERIFY: %w", err)
		}
		tlsConfig.InsecureSkipVerify = insecure
	}

	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read REDIS_TLS_CA_FILE: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, errors.New("REDIS_TLS_CA_FILE contains no valid certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load redis TLS keypair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}
