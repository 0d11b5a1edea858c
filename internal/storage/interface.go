/*
Package storage implements the persistent history store.

It records searches and executions for the describe/stats surface and caches
embedding vectors between runs. The database is a SQLite file (pure Go,
modernc.org/sqlite) that defaults to ~/.toolgate/history.db.

Storage degrades gracefully: if the database cannot be opened, the store
disables itself and every operation becomes a no-op instead of failing the
gateway.
*/
package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/khanglvm/toolgate/internal/log"
)

// Storage defines the persistent history operations.
type Storage interface {
	// Init opens the database and runs migrations.
	Init() error

	// RecordSearch records one search.
	RecordSearch(search SearchRecord) error

	// RecordExecution records one execution.
	RecordExecution(exec ExecutionRecord) error

	// Stats summarizes history since a point in time.
	Stats(since time.Time) (Stats, error)

	// SaveEmbedding caches an embedding vector under key.
	SaveEmbedding(key string, vector []float32, version string) error

	// GetEmbedding retrieves a cached embedding and its version.
	GetEmbedding(key string) ([]float32, string, error)

	// Cleanup removes records and cached embeddings older than retention.
	Cleanup(retention time.Duration) error

	// Enabled reports whether the database is usable.
	Enabled() bool

	Close() error
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	mu       sync.Mutex
	initOnce sync.Once
}

// DefaultPath returns ~/.toolgate/history.db, or "" if the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".toolgate", "history.db")
}

// NewStorage returns a storage rooted at path. An empty path selects
// DefaultPath; if that cannot be resolved the storage starts disabled.
func NewStorage(path string) *SQLiteStorage {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		log.Warnf("history disabled: failed to resolve home directory")
		return &SQLiteStorage{enabled: false}
	}
	return &SQLiteStorage{dbPath: path, enabled: true}
}

// Init opens the database and runs migrations.
//
// If initialization fails, storage is disabled and subsequent operations
// become no-ops.
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.enabled = false
			log.Warnf("%v", initErr)
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.enabled = false
			log.Warnf("%v", initErr)
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.enabled = false
			log.Warnf("%v", initErr)
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.enabled = false
			log.Warnf("%v", initErr)
			return
		}
	})

	return initErr
}

// Enabled reports whether the database is usable.
func (s *SQLiteStorage) Enabled() bool {
	return s.enabled && s.db != nil
}

// Path returns the database path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}

// HashQuery returns the SHA-256 of a query so raw text is never stored.
func HashQuery(query string) string {
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:])
}
