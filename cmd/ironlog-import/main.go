package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/claude/ironlog/internal/backend"
	"github.com/claude/ironlog/internal/client"
	"github.com/claude/ironlog/internal/config"
	"github.com/claude/ironlog/internal/importer"
	"github.com/claude/ironlog/internal/ingest"
	"github.com/claude/ironlog/internal/ingest/alpha"
	"github.com/claude/ironlog/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	exportPath := flag.String("path", "", "directory of Alpha Progression CSV exports (required)")
	userFlag := flag.String("user", "", "user ID to import for (local mode)")
	serverURL := flag.String("server", "", "IronLog server URL; uploads instead of writing the database")
	email := flag.String("email", "", "account email for -server (password from IRONLOG_PASSWORD)")
	stateDir := flag.String("state", "", "state directory (default ~/.ironlog)")
	dryRun := flag.Bool("dry-run", false, "list files that would be imported without importing")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("ironlog-import", Version)
		return
	}

	if *exportPath == "" || (*serverURL == "" && *userFlag == "") {
		fmt.Fprintf(os.Stderr, "Usage: ironlog-import -path <dir> (-user <id> [-config config.yaml] | -server <URL> -email <email>) [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	info, err := os.Stat(*exportPath)
	if err != nil || !info.IsDir() {
		slog.Error("export path does not exist or is not a directory", "path", *exportPath)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		log    *slog.Logger
		ing    importer.Ingester
		userID uuid.UUID
	)
	if *serverURL != "" {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
		c := client.New(*serverURL, os.Getenv("IRONLOG_TOKEN"))
		if *email != "" {
			if err := c.Login(ctx, *email, os.Getenv("IRONLOG_PASSWORD")); err != nil {
				log.Error("login failed", "error", err)
				os.Exit(1)
			}
		}
		ing = c
		// Import state is keyed per server account.
		userID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(*serverURL+"#"+*email))
	} else {
		userID, err = uuid.Parse(*userFlag)
		if err != nil {
			slog.Error("invalid -user", "error", err)
			os.Exit(1)
		}
		cfg, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		var closeLog interface{ Close() error }
		log, closeLog = logging.New(cfg.Log)
		defer closeLog.Close()

		stores, err := backend.Open(ctx, cfg, cfg.Backend == config.BackendPostgres, log)
		if err != nil {
			log.Error("failed to open backend", "error", err)
			os.Exit(1)
		}
		defer stores.Close()
		svc := backend.NewServices(stores, nil, cfg, log)
		ing = alpha.NewProvider(svc.Exercises, svc.Sessions, svc.Records, log.With("component", "alpha"))
	}

	dir := *stateDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(home, ".ironlog")
	}
	state, err := ingest.OpenStateDB(dir)
	if err != nil {
		log.Error("failed to open state db", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	if *dryRun {
		log.Info("DRY RUN mode: nothing will be imported")
	}

	stats, err := importer.New(ing, state, log, *dryRun).Import(ctx, userID, *exportPath)
	printStats(log, stats)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			log.Error("import error", "error", e)
		}
		os.Exit(1)
	}
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"sessions_imported", stats.SessionsImported,
		"sessions_failed", stats.SessionsFailed,
		"sets_imported", stats.SetsImported,
		"records_set", stats.RecordsSet,
	)
	for _, e := range stats.Errors {
		log.Warn("session not imported", "detail", e)
	}
}
