// Package durable is the optional persistent index of artifact records.
// When a DATABASE_URL is configured, artifact records survive process
// restarts: the server warms the artifact cache tier from this index at
// startup and the janitor keeps it consistent with the files on disk.
// Without it, the artifact tier is memory-only and rebuilt on demand.
package durable

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/onnwee/pagelens/backend/internal/artifacts"
	"github.com/onnwee/pagelens/backend/internal/keys"
)

const schema = `
CREATE TABLE IF NOT EXISTS artifact_records (
    key          TEXT PRIMARY KEY,
    storage_path TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
)`

// Store is a Postgres-backed artifact record index.
type Store struct {
	db *sql.DB
}

// Open connects and ensures the schema exists.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("durable: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("durable: ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Upsert records an artifact, replacing any previous path for the key.
func (s *Store) Upsert(ctx context.Context, rec artifacts.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifact_records (key, storage_path, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE
		 SET storage_path = EXCLUDED.storage_path, created_at = EXCLUDED.created_at`,
		rec.Key.String(), rec.StoragePath, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("durable: upsert: %w", err)
	}
	return nil
}

// DeleteByPath removes the record for a storage path, if any.
func (s *Store) DeleteByPath(ctx context.Context, storagePath string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM artifact_records WHERE storage_path = $1`, storagePath)
	if err != nil {
		return fmt.Errorf("durable: delete: %w", err)
	}
	return nil
}

// List returns all known records, newest first.
func (s *Store) List(ctx context.Context) ([]artifacts.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, storage_path, created_at FROM artifact_records ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("durable: list: %w", err)
	}
	defer rows.Close()

	var recs []artifacts.Record
	for rows.Next() {
		var (
			key  string
			path string
			at   time.Time
		)
		if err := rows.Scan(&key, &path, &at); err != nil {
			return nil, fmt.Errorf("durable: scan: %w", err)
		}
		recs = append(recs, artifacts.Record{
			Key:         keys.Key(key),
			StoragePath: path,
			CreatedAt:   at,
		})
	}
	return recs, rows.Err()
}

// PruneBefore removes records created before cutoff and returns how many
// were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM artifact_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("durable: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
