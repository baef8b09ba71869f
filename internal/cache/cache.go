// ABOUTME: SQLite-backed snapshot cache using modernc.org/sqlite
// ABOUTME: Stores the last successful fetch per entity kind for offline fallback

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoSnapshot is returned when no snapshot exists for the requested kind.
var ErrNoSnapshot = errors.New("no snapshot")

// Known snapshot kinds.
const (
	KindPosts      = "posts"
	KindCategories = "categories"
)

// Store persists the last successful fetch of each entity kind so the CLI
// can show something when the server is unreachable. The cache is best
// effort: a stale snapshot is presented as stale, never as current.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the cache database at the given path, creating parent
// directories and the schema as needed.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cache")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("snapshot cache opened", "path", path)
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			kind TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			fetched_at TEXT NOT NULL
		)
	`
	_, err := s.db.Exec(schema)
	return err
}

// Put stores a snapshot payload for a kind, replacing any previous one.
func (s *Store) Put(ctx context.Context, kind string, payload []byte) error {
	query := `
		INSERT INTO snapshots (kind, payload, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at
	`
	_, err := s.db.ExecContext(ctx, query, kind, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("storing snapshot: %w", err)
	}
	s.logger.Debug("stored snapshot", "kind", kind, "bytes", len(payload))
	return nil
}

// Get returns the stored payload and fetch time for a kind, or ErrNoSnapshot.
func (s *Store) Get(ctx context.Context, kind string) ([]byte, time.Time, error) {
	query := `SELECT payload, fetched_at FROM snapshots WHERE kind = ?`

	var payload []byte
	var fetchedAt string
	err := s.db.QueryRowContext(ctx, query, kind).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loading snapshot: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("parsing snapshot timestamp: %w", err)
	}
	return payload, ts, nil
}

// Delete removes a kind's snapshot. Removing a missing one succeeds silently.
func (s *Store) Delete(ctx context.Context, kind string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE kind = ?`, kind)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
