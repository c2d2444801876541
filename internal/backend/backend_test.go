package backend

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/claude/ironlog/internal/cache"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/sessions"
	"github.com/google/uuid"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig(b config.Backend) *config.Config {
	return &config.Config{
		Backend: b,
		REST:    config.RESTConfig{URL: "http://localhost:1", APIKey: "k"},
		Auth:    config.AuthConfig{JWTSecret: "s", AccessTTL: time.Minute, RefreshTTL: time.Hour},
		Cache:   config.CacheConfig{TTL: time.Minute, LocalSizeMB: 1},
	}
}

// TestOpenMemory verifies that the memory backend serves every service.
func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.BackendMemory)
	st, err := Open(ctx, cfg, false, discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	svc := NewServices(st, cache.Nop{}, cfg, discard())
	if svc.Auth == nil || svc.Programs == nil {
		t.Fatal("memory backend should provide auth and programs")
	}
	if err := st.Health.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	user := uuid.New()
	if _, err := svc.Sessions.Create(ctx, user, sessions.NewSession{Name: "Test"}); err != nil {
		t.Errorf("Create: %v", err)
	}
}

// TestOpenREST verifies the REST backend leaves auth and programs unset.
func TestOpenREST(t *testing.T) {
	cfg := testConfig(config.BackendREST)
	st, err := Open(context.Background(), cfg, false, discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	svc := NewServices(st, nil, cfg, discard())
	if svc.Auth != nil || svc.Programs != nil {
		t.Error("REST backend should not provide auth or programs")
	}
	if svc.Sessions == nil || svc.Records == nil {
		t.Error("REST backend should provide sessions and records")
	}
}

// TestOpenUnknown verifies an unknown backend is rejected.
func TestOpenUnknown(t *testing.T) {
	if _, err := Open(context.Background(), testConfig("sqlite"), false, discard()); err == nil {
		t.Fatal("expected error")
	}
}

// TestOpenCache verifies each cache driver.
func TestOpenCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.CacheConfig
		want    any
		wantErr bool
	}{
		{"none", config.CacheConfig{Driver: "none"}, cache.Nop{}, false},
		{"empty", config.CacheConfig{}, cache.Nop{}, false},
		{"local", config.CacheConfig{Driver: "local", LocalSizeMB: 1}, &cache.Local{}, false},
		{"redis", config.CacheConfig{Driver: "redis", RedisAddr: mr.Addr()}, &cache.Redis{}, false},
		{"redis down", config.CacheConfig{Driver: "redis", RedisAddr: "127.0.0.1:1"}, nil, true},
		{"unknown", config.CacheConfig{Driver: "memcached"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &Stores{}
			defer st.Close()
			c, err := st.OpenCache(ctx, tt.cfg, discard())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenCache: %v", err)
			}
			switch tt.want.(type) {
			case cache.Nop:
				if _, ok := c.(cache.Nop); !ok {
					t.Errorf("cache = %T, want Nop", c)
				}
			case *cache.Local:
				if _, ok := c.(*cache.Local); !ok {
					t.Errorf("cache = %T, want *Local", c)
				}
			case *cache.Redis:
				if _, ok := c.(*cache.Redis); !ok {
					t.Errorf("cache = %T, want *Redis", c)
				}
				if len(st.close) != 1 {
					t.Error("redis cache should be closed with the stores")
				}
			}
		})
	}
}
