package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNextMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	at := time.Date(2024, 3, 10, 23, 59, 30, 0, loc)
	got := NextMidnight(at)
	want := time.Date(2024, 3, 11, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextMidnight(%v) = %v, want %v", at, got, want)
	}
	if d := got.Sub(at); d != 30*time.Second {
		t.Fatalf("expected 30s to midnight, got %v", d)
	}

	// Start of day still rolls to the next one.
	at = time.Date(2024, 3, 10, 0, 0, 0, 0, loc)
	if got := NextMidnight(at); !got.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, loc)) {
		t.Fatalf("NextMidnight at midnight = %v", got)
	}
}

func TestKeysCarryDeployEnv(t *testing.T) {
	dev := NewKeys("dev")
	prod := NewKeys("prod")
	if dev.RoomQueueLock("r1") == prod.RoomQueueLock("r1") {
		t.Fatal("keys from different envs must not collide")
	}
	if dev.SMSCode("138") == dev.SMSCode("139") {
		t.Fatal("keys for different subjects must not collide")
	}
}

func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	c, err := New(addr, os.Getenv("REDIS_PASSWORD"), 0, NewKeys("test"))
	if err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	return c
}

func TestDailyTokenBucket(t *testing.T) {
	c := testClient(t)
	defer c.Close()
	ctx := context.Background()

	key := c.Keys().SMSDailyTokens("test_" + newLockToken())
	defer c.Delete(ctx, key)

	const total = 5
	remaining, err := c.GetDailyToken(ctx, key, total)
	if err != nil {
		t.Fatal(err)
	}
	if remaining != total {
		t.Fatalf("fresh bucket = %d, want %d", remaining, total)
	}

	for want := total - 1; want >= 0; want-- {
		remaining, err = c.TakeDailyToken(ctx, key, total)
		if err != nil {
			t.Fatal(err)
		}
		if remaining != want {
			t.Fatalf("after take: %d, want %d", remaining, want)
		}
	}

	// Exhausted bucket stays at zero.
	remaining, err = c.TakeDailyToken(ctx, key, total)
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Fatalf("exhausted bucket returned %d", remaining)
	}

	ttl, err := c.Redis().TTL(ctx, key).Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > 24*time.Hour {
		t.Fatalf("bucket ttl %v not within the day", ttl)
	}
}

func TestSetOperations(t *testing.T) {
	c := testClient(t)
	defer c.Close()
	ctx := context.Background()

	key := c.Keys().RoomQueueUsers("test_" + newLockToken())
	defer c.Delete(ctx, key)

	if err := c.SAdd(ctx, key, "u1", "u2"); err != nil {
		t.Fatal(err)
	}
	n, err := c.SCard(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("SCard = %d, want 2", n)
	}
	if err := c.SRem(ctx, key, "u1"); err != nil {
		t.Fatal(err)
	}
	if n, _ = c.SCard(ctx, key); n != 1 {
		t.Fatalf("SCard after SRem = %d, want 1", n)
	}
}
