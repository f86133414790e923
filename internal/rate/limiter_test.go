package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, cfg), mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestLoginBudgetExhaustsAndExpires(t *testing.T) {
	l, mr, done := newLimiterTest(t, Config{MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})
	defer done()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := l.CheckLogin(ctx, "spartan", ""); err != nil {
			t.Fatalf("attempt %d: unexpected limit: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "spartan", ""); err != nil {
			t.Fatalf("attempt %d: increment: %v", i, err)
		}
	}

	if err := l.CheckLogin(ctx, "spartan", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after budget, got %v", err)
	}
	if err := l.CheckLogin(ctx, "other", ""); err != nil {
		t.Fatalf("other username must not be limited: %v", err)
	}

	if ttl := mr.TTL(loginUserKey("spartan")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected window TTL %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "spartan", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestIPThrottleSpansUsernames(t *testing.T) {
	l, _, done := newLimiterTest(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 2, LoginCooldownDuration: time.Minute})
	defer done()
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "a", "10.0.0.1")
	_ = l.IncrementLogin(ctx, "b", "10.0.0.1")

	if err := l.CheckLogin(ctx, "c", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP limit across usernames, got %v", err)
	}
	if err := l.CheckLogin(ctx, "c", "10.0.0.2"); err != nil {
		t.Fatalf("different IP must not be limited: %v", err)
	}
}

func TestResetLoginClearsCounters(t *testing.T) {
	l, _, done := newLimiterTest(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	defer done()
	ctx := context.Background()

	if err := l.IncrementLogin(ctx, "spartan", "10.0.0.1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := l.IncrementLogin(ctx, "spartan", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected increment past budget to report limit, got %v", err)
	}
	if err := l.ResetLogin(ctx, "spartan", "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	n, err := l.GetLoginAttempts(ctx, "spartan")
	if err != nil || n != 0 {
		t.Fatalf("expected cleared counter, got n=%d err=%v", n, err)
	}
	if err := l.CheckLogin(ctx, "spartan", "10.0.0.1"); err != nil {
		t.Fatalf("expected no limit after reset, got %v", err)
	}
}

func TestRedisOutage(t *testing.T) {
	l, mr, done := newLimiterTest(t, Config{MaxLoginAttempts: 1, LoginCooldownDuration: time.Minute})
	defer done()
	mr.Close()

	if err := l.CheckLogin(context.Background(), "spartan", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
