// Package importer ingests a directory of Alpha Progression exports and
// remembers which files it has already processed.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/claude/ironlog/internal/ingest"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Ingester turns one export into stored sessions.
type Ingester interface {
	Ingest(ctx context.Context, userID uuid.UUID, r io.Reader) (*ingest.Result, error)
}

// State remembers ingested files.
type State interface {
	IsImported(ctx context.Context, userID uuid.UUID, hash string) (bool, error)
	MarkImported(ctx context.Context, userID uuid.UUID, hash, path string, res *ingest.Result) error
}

var _ State = (*ingest.StateDB)(nil)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	ingest.Result
}

// Importer reads .csv exports from a directory tree.
type Importer struct {
	ingester Ingester
	state    State
	log      *slog.Logger
	dryRun   bool
	stats    Stats
}

// New creates a new Importer. state may be nil to import every file.
func New(ing Ingester, state State, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{ingester: ing, state: state, log: log, dryRun: dryRun}
}

// Import processes every .csv file under dir for userID. A failing file
// does not stop the run; all file errors are returned together.
func (imp *Importer) Import(ctx context.Context, userID uuid.UUID, dir string) (*Stats, error) {
	files, err := findExports(dir)
	if err != nil {
		return &imp.stats, err
	}
	imp.log.Info("found exports", "dir", dir, "files", len(files))

	var errs error
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, multierr.Append(errs, err)
		}
		if err := imp.importFile(ctx, userID, path); err != nil {
			imp.stats.FilesErrored++
			imp.log.Error("import failed", "file", path, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return &imp.stats, errs
}

func (imp *Importer) importFile(ctx context.Context, userID uuid.UUID, path string) error {
	hash, err := ingest.HashFile(path)
	if err != nil {
		return fmt.Errorf("hashing: %w", err)
	}
	if imp.state != nil {
		done, err := imp.state.IsImported(ctx, userID, hash)
		if err != nil {
			return err
		}
		if done {
			imp.stats.FilesSkipped++
			imp.log.Debug("skipping already imported file", "file", path)
			return nil
		}
	}

	if imp.dryRun {
		imp.stats.FilesProcessed++
		imp.log.Info("dry run: would import", "file", path)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := imp.ingester.Ingest(ctx, userID, f)
	if err != nil {
		return err
	}
	imp.stats.FilesProcessed++
	imp.stats.Merge(res)
	imp.log.Info("imported file", "file", path,
		"sessions", res.SessionsImported, "failed", res.SessionsFailed, "records", res.RecordsSet)

	// Files with failed sessions stay unmarked so a rerun retries them.
	if imp.state == nil || res.SessionsFailed > 0 {
		return nil
	}
	return imp.state.MarkImported(ctx, userID, hash, path, res)
}

// findExports returns the .csv files under dir in lexical order.
func findExports(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
