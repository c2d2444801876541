package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()
	key := SessionKey(uuid.New())

	if _, err := c.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get on empty cache: err = %v, want ErrMiss", err)
	}
	if err := c.Set(ctx, key, []byte(`{"name":"Leg Day"}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"name":"Leg Day"}` {
		t.Errorf("Get = %q", got)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, key); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get after Delete: err = %v, want ErrMiss", err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}
}

// TestRedisRoundTrip verifies get/set/delete against a miniredis server.
func TestRedisRoundTrip(t *testing.T) {
	s := miniredis.RunT(t)
	c := NewRedis(s.Addr(), "")
	defer c.Close()

	exercise(t, c)
}

// TestRedisExpiry verifies that the TTL is passed through to Redis.
func TestRedisExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	c := NewRedis(s.Addr(), "")
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "session:x", []byte("v"), 30*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.FastForward(31 * time.Second)
	if _, err := c.Get(ctx, "session:x"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get after expiry: err = %v, want ErrMiss", err)
	}
}

// TestRedisUnavailable verifies that transport failures are errors, not misses.
func TestRedisUnavailable(t *testing.T) {
	s := miniredis.RunT(t)
	c := NewRedis(s.Addr(), "")
	defer c.Close()
	s.Close()

	_, err := c.Get(context.Background(), "session:x")
	if err == nil || errors.Is(err, ErrMiss) {
		t.Fatalf("Get on closed server: err = %v, want transport error", err)
	}
}

// TestLocalRoundTrip verifies the freecache-backed cache.
func TestLocalRoundTrip(t *testing.T) {
	exercise(t, NewLocal(1))
}

// TestNop verifies that Nop never returns a hit.
func TestNop(t *testing.T) {
	var c Nop
	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get: err = %v, want ErrMiss", err)
	}
}
