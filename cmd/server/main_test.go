package main

import (
	"context"
	"testing"

	memorydb "liveshop/internal/db/memory"
	"liveshop/internal/events"
	"liveshop/internal/expiry"
	"liveshop/internal/lock"
	"liveshop/internal/orders"
	"liveshop/internal/payments"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

func TestBuildStore_FallsBackToMemory(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	store, cleanup, err := buildStore(context.Background(), zerolog.Nop())
	if err != nil {
		t.Fatalf("build store: %v", err)
	}
	defer cleanup()

	if _, ok := store.(*memorydb.Store); !ok {
		t.Fatalf("expected in-memory store, got %T", store)
	}
}

func TestBuildLocker_FallsBackToLocal(t *testing.T) {
	t.Setenv("ZK_SERVERS", "")

	locker, cleanup, err := buildLocker(zerolog.Nop())
	if err != nil {
		t.Fatalf("build locker: %v", err)
	}
	defer cleanup()

	if _, ok := locker.(*lock.LocalLocker); !ok {
		t.Fatalf("expected local locker, got %T", locker)
	}
}

func TestBuildDeadlineIndex_DisabledWithoutURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	idx, cleanup, err := buildDeadlineIndex(context.Background(), zerolog.Nop())
	if err != nil {
		t.Fatalf("build deadline index: %v", err)
	}
	defer cleanup()

	if _, ok := idx.(orders.NopDeadlineIndex); !ok {
		t.Fatalf("expected noop index, got %T", idx)
	}
}

func TestBuildDeadlineIndex_ConnectsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_URL", "redis://"+mr.Addr())
	t.Setenv("REDIS_OTEL", "")

	idx, cleanup, err := buildDeadlineIndex(context.Background(), zerolog.Nop())
	if err != nil {
		t.Fatalf("build deadline index: %v", err)
	}
	defer cleanup()

	if _, ok := idx.(*expiry.RedisIndex); !ok {
		t.Fatalf("expected redis index, got %T", idx)
	}
}

func TestBuildPublisher_DisabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")

	pub, cleanup, err := buildPublisher(context.Background(), zerolog.Nop())
	if err != nil {
		t.Fatalf("build publisher: %v", err)
	}
	defer cleanup()

	if _, ok := pub.(events.NopPublisher); !ok {
		t.Fatalf("expected noop publisher, got %T", pub)
	}
}

func TestBuildProviders_EmptyWhenUnconfigured(t *testing.T) {
	t.Setenv("KAKAO_CID", "")
	t.Setenv("KAKAO_SECRET_KEY", "")
	t.Setenv("TOSS_CLIENT_KEY", "")
	t.Setenv("TOSS_SECRET_KEY", "")

	providers, err := buildProviders(zerolog.Nop())
	if err != nil {
		t.Fatalf("build providers: %v", err)
	}
	if len(providers) != 0 {
		t.Fatalf("expected no providers, got %d", len(providers))
	}
}

func TestBuildProviders_WiresConfiguredMethods(t *testing.T) {
	t.Setenv("KAKAO_CID", "TC0ONETIME")
	t.Setenv("KAKAO_SECRET_KEY", "secret")
	t.Setenv("KAKAO_APPROVAL_URL", "https://shop.example/payment/kakao/complete")
	t.Setenv("KAKAO_CANCEL_URL", "https://shop.example/payment/cancel")
	t.Setenv("KAKAO_FAIL_URL", "https://shop.example/payment/fail")
	t.Setenv("TOSS_CLIENT_KEY", "")
	t.Setenv("TOSS_SECRET_KEY", "")

	providers, err := buildProviders(zerolog.Nop())
	if err != nil {
		t.Fatalf("build providers: %v", err)
	}
	if len(providers) != 1 {
		t.Fatalf("expected one provider, got %d", len(providers))
	}
	if _, ok := providers[payments.MethodKakaoPay]; !ok {
		t.Fatal("expected kakao provider to be wired")
	}
}
