package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/ironlog/internal/backend"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/ingest/alpha"
	"github.com/claude/ironlog/internal/logging"
	"github.com/claude/ironlog/internal/metrics"
	"github.com/claude/ironlog/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log, closeLog := logging.New(cfg.Log)
	defer closeLog.Close()
	log.Info("IronLog starting", "version", Version, "backend", cfg.Backend)

	if cfg.Backend == config.BackendREST {
		log.Error("the API server needs the postgres or memory backend")
		os.Exit(1)
	}

	ctx := context.Background()
	stores, err := backend.Open(ctx, cfg, true, log)
	if err != nil {
		log.Error("failed to open backend", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	c, err := stores.OpenCache(ctx, cfg.Cache, log)
	if err != nil {
		log.Error("failed to open cache", "error", err)
		os.Exit(1)
	}
	svc := backend.NewServices(stores, c, cfg, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewManager("ironlog", "api", reg)

	srv := server.New(server.Services{
		Auth:       svc.Auth,
		Sessions:   svc.Sessions,
		Records:    svc.Records,
		Exercises:  svc.Exercises,
		Programs:   svc.Programs,
		BodyWeight: svc.BodyWeight,
		Alpha:      alpha.NewProvider(svc.Exercises, svc.Sessions, svc.Records, log.With("component", "alpha")),
		Health:     stores.Health,
	}, m, reg, log)

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		ts := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := ts.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer ts.Close()

		listener, err = ts.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		listener, err = net.Listen("tcp", cfg.Server.Addr())
		if err != nil {
			log.Error("listen failed", "addr", cfg.Server.Addr(), "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", cfg.Server.Addr())
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
