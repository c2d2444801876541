// Package backend opens the configured persistence and cache and builds
// the domain services on top of them.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/ironlog/internal/auth"
	"github.com/claude/ironlog/internal/bodyweight"
	"github.com/claude/ironlog/internal/cache"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/exercises"
	"github.com/claude/ironlog/internal/postgrest"
	"github.com/claude/ironlog/internal/programs"
	"github.com/claude/ironlog/internal/records"
	"github.com/claude/ironlog/internal/sessions"
	"github.com/claude/ironlog/internal/storage"
	"github.com/claude/ironlog/internal/storage/memstore"
	"go.uber.org/multierr"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores are the per-service persistence implementations of one backend.
// Auth and Programs are nil for the REST backend.
type Stores struct {
	Kind       config.Backend
	Sessions   sessions.Store
	Records    records.Store
	Exercises  exercises.Store
	BodyWeight bodyweight.Store
	Auth       auth.Store
	Programs   programs.Store
	Health     Pinger

	close []func() error
}

// Open connects the backend named in cfg. Postgres migrations are applied
// when migrate is set.
func Open(ctx context.Context, cfg *config.Config, migrate bool, log *slog.Logger) (*Stores, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		dsn := cfg.Database.DSN()
		if migrate {
			if err := storage.RunMigrations(dsn, cfg.MigrationsDir); err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
			log.Info("migrations applied")
		}
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		log.Info("database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)
		return &Stores{
			Kind: cfg.Backend, Sessions: db, Records: db, Exercises: db, BodyWeight: db,
			Auth: db, Programs: db, Health: db,
			close: []func() error{func() error { db.Close(); return nil }},
		}, nil

	case config.BackendREST:
		c := postgrest.New(cfg.REST.URL, cfg.REST.APIKey)
		log.Info("using hosted REST backend", "url", cfg.REST.URL)
		return &Stores{
			Kind: cfg.Backend, Sessions: c, Records: c, Exercises: c, BodyWeight: c, Health: c,
		}, nil

	case config.BackendMemory:
		m := memstore.New()
		log.Warn("using in-memory backend; data is lost on exit")
		return &Stores{
			Kind: cfg.Backend, Sessions: m, Records: m, Exercises: m, BodyWeight: m,
			Auth: m, Programs: m, Health: m,
		}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// Close releases every connection the backend holds.
func (s *Stores) Close() error {
	var err error
	for _, fn := range s.close {
		err = multierr.Append(err, fn())
	}
	return err
}

// OpenCache builds the session-detail cache named in cfg. A redis cache is
// closed together with the stores.
func (s *Stores) OpenCache(ctx context.Context, cfg config.CacheConfig, log *slog.Logger) (cache.Cache, error) {
	switch cfg.Driver {
	case "", "none":
		return cache.Nop{}, nil
	case "local":
		log.Info("using in-process session cache", "size_mb", cfg.LocalSizeMB)
		return cache.NewLocal(cfg.LocalSizeMB), nil
	case "redis":
		r := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, fmt.Errorf("connecting redis %s: %w", cfg.RedisAddr, err)
		}
		s.close = append(s.close, r.Close)
		log.Info("using redis session cache", "addr", cfg.RedisAddr)
		return r, nil
	}
	return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
}

// Services are the domain services built over one backend. Auth and
// Programs are nil when the backend has no store for them.
type Services struct {
	Auth       *auth.Service
	Sessions   *sessions.Service
	Records    *records.Service
	Exercises  *exercises.Service
	Programs   *programs.Service
	BodyWeight *bodyweight.Service
}

// NewServices builds every service the stores support.
func NewServices(s *Stores, c cache.Cache, cfg *config.Config, log *slog.Logger) *Services {
	svc := &Services{
		Sessions:   sessions.NewService(s.Sessions, c, cfg.Cache.TTL, log.With("component", "sessions")),
		Records:    records.NewService(s.Records, log.With("component", "records")),
		Exercises:  exercises.NewService(s.Exercises, log.With("component", "exercises")),
		BodyWeight: bodyweight.NewService(s.BodyWeight, log.With("component", "bodyweight")),
	}
	if s.Auth != nil {
		svc.Auth = auth.NewService(s.Auth, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, log.With("component", "auth"))
	}
	if s.Programs != nil {
		svc.Programs = programs.NewService(s.Programs, log.With("component", "programs"))
	}
	return svc
}
