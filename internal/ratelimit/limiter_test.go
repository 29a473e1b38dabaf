package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestLimiter connects to a local Redis and cleans up test keys. Tests
// that call this helper require a running Redis on localhost:6379.
func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		for _, prefix := range []string{"rl:msg:test_*", "rl:match:test_*", "rl:conn:test_*"} {
			iter := client.Scan(ctx, 0, prefix, 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewLimiter(client)
}

func TestAllow_UnderLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:msg:", Limit: 5, Window: 10 * time.Second}

	for i := 0; i < rule.Limit; i++ {
		allowed, err := l.Allow(ctx, "test_under", rule)
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d: expected allowed", i)
		}
	}
}

func TestAllow_OverLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:msg:", Limit: 3, Window: 10 * time.Second}

	for i := 0; i < rule.Limit; i++ {
		if allowed, _ := l.Allow(ctx, "test_over", rule); !allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	allowed, err := l.Allow(ctx, "test_over", rule)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatal("expected request over the limit to be denied")
	}
}

func TestAllow_SeparateIdentifiers(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:msg:", Limit: 1, Window: 10 * time.Second}

	if allowed, _ := l.Allow(ctx, "test_id_a", rule); !allowed {
		t.Fatal("first identifier should be allowed")
	}
	if allowed, _ := l.Allow(ctx, "test_id_a", rule); allowed {
		t.Fatal("first identifier should now be limited")
	}
	// A different identifier has its own counter.
	if allowed, _ := l.Allow(ctx, "test_id_b", rule); !allowed {
		t.Fatal("second identifier should be unaffected")
	}
}

func TestAllow_WindowResets(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:msg:", Limit: 1, Window: time.Second}

	if allowed, _ := l.Allow(ctx, "test_reset", rule); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _ := l.Allow(ctx, "test_reset", rule); allowed {
		t.Fatal("second request should be limited")
	}

	time.Sleep(1100 * time.Millisecond)

	if allowed, _ := l.Allow(ctx, "test_reset", rule); !allowed {
		t.Fatal("request after window expiry should be allowed")
	}
}

func TestRetryAfter(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	rule := Rule{Key: "rl:match:", Limit: 1, Window: 30 * time.Second}

	// No key yet: nothing to wait for.
	if got := l.RetryAfter(ctx, "test_retry", rule); got != 0 {
		t.Fatalf("expected 0 before any request, got %d", got)
	}

	l.Allow(ctx, "test_retry", rule)

	got := l.RetryAfter(ctx, "test_retry", rule)
	if got <= 0 || got > int(rule.Window.Seconds()) {
		t.Fatalf("expected retry within (0, %d], got %d", int(rule.Window.Seconds()), got)
	}
}

func TestRules_DistinctPrefixes(t *testing.T) {
	prefixes := map[string]bool{}
	for _, rule := range []Rule{RuleMessage, RuleMatch, RuleConnect} {
		if rule.Key == "" || rule.Limit <= 0 || rule.Window <= 0 {
			t.Fatalf("malformed rule: %+v", rule)
		}
		if prefixes[rule.Key] {
			t.Fatalf("duplicate rule prefix %q", rule.Key)
		}
		prefixes[rule.Key] = true
	}
	if len(prefixes) != 3 {
		t.Fatalf("expected 3 distinct prefixes, got %d", len(prefixes))
	}
}
