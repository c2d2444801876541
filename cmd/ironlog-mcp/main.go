package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/ironlog/internal/backend"
	"github.com/claude/ironlog/internal/client"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/mcp"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	userFlag := flag.String("user", "", "user ID whose data is served (local mode)")
	serverURL := flag.String("server", "", "IronLog server URL; reads over the REST API with IRONLOG_TOKEN")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("ironlog-mcp", Version)
		return
	}

	// stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var (
		ds     mcp.DataSource
		userID uuid.UUID
	)
	switch {
	case *serverURL != "":
		token := os.Getenv("IRONLOG_TOKEN")
		if token == "" {
			log.Error("IRONLOG_TOKEN is required with -server")
			os.Exit(1)
		}
		ds = client.New(*serverURL, token)
		log.Info("serving remote data", "server", *serverURL)

	case *userFlag != "":
		var err error
		userID, err = uuid.Parse(*userFlag)
		if err != nil {
			log.Error("invalid -user", "error", err)
			os.Exit(1)
		}
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		stores, err := backend.Open(context.Background(), cfg, false, log)
		if err != nil {
			log.Error("failed to open backend", "error", err)
			os.Exit(1)
		}
		defer stores.Close()
		svc := backend.NewServices(stores, nil, cfg, log)
		ds = mcp.NewLocal(svc.Sessions, svc.Records, svc.Exercises, svc.BodyWeight)
		log.Info("serving local data", "backend", cfg.Backend, "user_id", userID)

	default:
		fmt.Fprintf(os.Stderr, "Usage: ironlog-mcp (-user <id> [-config config.yaml] | -server <URL>)\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	s := mcp.New(ds, Version, log)
	err := server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return mcp.WithUserID(ctx, userID)
	}))
	if err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
