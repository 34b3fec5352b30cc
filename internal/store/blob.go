package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// BlobStore persists encrypted PKG blobs and per-user sync watermarks in a
// local SQLite database. The blobs are opaque here; sealing happens in the
// graph store.
type BlobStore struct {
	db     *sql.DB
	dbPath string
}

// NewBlobStore creates or opens the device database under dataDir.
func NewBlobStore(dataDir string) (*BlobStore, error) {
	dbPath := filepath.Join(dataDir, "pkg.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &BlobStore{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *BlobStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pkg_blobs (
		user_id    TEXT PRIMARY KEY,
		blob       BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_state (
		user_id      TEXT PRIMARY KEY,
		last_success TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *BlobStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database handle is still usable.
func (s *BlobStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *BlobStore) GetBlob(ctx context.Context, userID string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT blob FROM pkg_blobs WHERE user_id = ?`, userID,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return blob, nil
}

func (s *BlobStore) PutBlob(ctx context.Context, userID string, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pkg_blobs (user_id, blob, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		userID, blob, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *BlobStore) DeleteBlob(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pkg_blobs WHERE user_id = ?`, userID,
	)
	return err
}

func (s *BlobStore) LastSyncAt(ctx context.Context, userID string) (*time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_success FROM sync_state WHERE user_id = ?`, userID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse sync watermark: %w", err)
	}
	return &at, nil
}

func (s *BlobStore) SetLastSyncAt(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_state (user_id, last_success) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET last_success = excluded.last_success`,
		userID, at.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *BlobStore) ClearSyncState(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sync_state WHERE user_id = ?`, userID,
	)
	return err
}
