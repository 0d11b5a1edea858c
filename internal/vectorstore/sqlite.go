package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists vectors in a SQLite database so an index survives
// restarts. Queries are a brute-force cosine scan, which is adequate for
// catalogs of a few thousand operations. Writes are serialized.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping vector store: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate vector store: %w", err)
	}
	return s, nil
}

type migration struct {
	version int
	name    string
	stmt    string
}

var migrations = []migration{
	{version: 1, name: "operation_vectors", stmt: `
		CREATE TABLE IF NOT EXISTS operation_vectors (
			id TEXT PRIMARY KEY,
			vector TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			dims INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`},
	{version: 2, name: "index_meta", stmt: `
		CREATE TABLE IF NOT EXISTS index_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`},
}

const fingerprintKey = "fingerprint"

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return err
	}

	for _, m := range migrations {
		if current >= m.version {
			continue
		}
		if _, err := s.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			return err
		}
	}
	return nil
}

// Upsert replaces the row for id.
func (s *SQLiteStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	vecJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to encode vector: %w", err)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO operation_vectors (id, vector, metadata, dims, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		id, string(vecJSON), string(metaJSON), len(vector))
	if err != nil {
		return fmt.Errorf("failed to upsert vector %s: %w", id, err)
	}
	return nil
}

// Query scans every row.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}

	var other string
	var dims int
	err := s.db.QueryRowContext(ctx, "SELECT id, dims FROM operation_vectors WHERE dims != ? LIMIT 1", len(vector)).Scan(&other, &dims)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s has %d dimensions, query has %d", ErrDimensionMismatch, other, dims, len(vector))
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check vector dimensions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT id, vector, metadata FROM operation_vectors")
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var id, vecJSON, metaJSON string
		if err := rows.Scan(&id, &vecJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			return nil, fmt.Errorf("failed to decode vector %s: %w", id, err)
		}
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("failed to decode metadata %s: %w", id, err)
		}
		matches = append(matches, Match{ID: id, Metadata: meta, Score: Score(vector, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vectors: %w", err)
	}
	return rank(matches, k), nil
}

// Count returns the number of rows.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM operation_vectors").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

// Reset deletes every row.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM operation_vectors"); err != nil {
		return fmt.Errorf("failed to reset vectors: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM index_meta WHERE key = ?", fingerprintKey); err != nil {
		return fmt.Errorf("failed to reset fingerprint: %w", err)
	}
	return nil
}

// Fingerprint reads the recorded fingerprint.
func (s *SQLiteStore) Fingerprint(ctx context.Context) (string, error) {
	var fp string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", fingerprintKey).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read fingerprint: %w", err)
	}
	return fp, nil
}

// SetFingerprint records fp.
func (s *SQLiteStore) SetFingerprint(ctx context.Context, fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO index_meta (key, value) VALUES (?, ?)", fingerprintKey, fp); err != nil {
		return fmt.Errorf("failed to write fingerprint: %w", err)
	}
	return nil
}

// ConcurrentWrites is false; the indexer funnels upserts through one writer.
func (s *SQLiteStore) ConcurrentWrites() bool { return false }

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
