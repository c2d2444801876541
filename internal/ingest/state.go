package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ImportedFile is one export file that was already ingested for a user.
type ImportedFile struct {
	UserID           uuid.UUID
	Hash             string
	Path             string
	SessionsImported int
	SetsImported     int
	ImportedAt       time.Time
}

// StateDB tracks which export files were ingested so reruns skip them.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS imported_files (
		user_id           TEXT NOT NULL,
		hash              TEXT NOT NULL,
		path              TEXT NOT NULL,
		sessions_imported INTEGER NOT NULL DEFAULT 0,
		sets_imported     INTEGER NOT NULL DEFAULT 0,
		imported_at       TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, hash)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsImported reports whether a file with this content hash was already
// ingested for the user.
func (s *StateDB) IsImported(ctx context.Context, userID uuid.UUID, hash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM imported_files WHERE user_id = ? AND hash = ?`,
		userID.String(), hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking import state: %w", err)
	}
	return count > 0, nil
}

// MarkImported records a successfully ingested file.
func (s *StateDB) MarkImported(ctx context.Context, userID uuid.UUID, hash, path string, res *Result) error {
	var sessions, sets int
	if res != nil {
		sessions, sets = res.SessionsImported, res.SetsImported
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO imported_files (user_id, hash, path, sessions_imported, sets_imported, imported_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID.String(), hash, path, sessions, sets, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording import state: %w", err)
	}
	return nil
}

// Imported lists the user's ingested files, newest first.
func (s *StateDB) Imported(ctx context.Context, userID uuid.UUID) ([]ImportedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, path, sessions_imported, sets_imported, imported_at
		 FROM imported_files WHERE user_id = ? ORDER BY imported_at DESC`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing import state: %w", err)
	}
	defer rows.Close()

	var files []ImportedFile
	for rows.Next() {
		f := ImportedFile{UserID: userID}
		if err := rows.Scan(&f.Hash, &f.Path, &f.SessionsImported, &f.SetsImported, &f.ImportedAt); err != nil {
			return nil, fmt.Errorf("scanning import state: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashFile computes the SHA-256 hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
