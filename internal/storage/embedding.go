package storage

import (
	"time"

	"github.com/khanglvm/toolgate/internal/log"
)

// SaveEmbedding caches an embedding vector under key.
func (s *SQLiteStorage) SaveEmbedding(key string, vector []float32, version string) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	vectorJSON := vectorToJSON(vector)

	query := `
		INSERT OR REPLACE INTO embedding_cache (cache_key, vector, version, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		key,
		vectorJSON,
		version,
		time.Now().UTC().Format(time.RFC3339),
	)

	if err != nil {
		log.Warnf("failed to save embedding: %v", err)
	}

	return nil
}

// GetEmbedding retrieves a cached embedding and the version that produced it.
func (s *SQLiteStorage) GetEmbedding(key string) ([]float32, string, error) {
	if !s.enabled || s.db == nil {
		return nil, "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		SELECT vector, version
		FROM embedding_cache
		WHERE cache_key = ?
	`

	rows, err := s.db.Query(query, key)
	if err != nil {
		log.Warnf("failed to query embedding: %v", err)
		return nil, "", nil
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, "", nil
	}

	var vectorJSON, version string
	if err := rows.Scan(&vectorJSON, &version); err != nil {
		log.Warnf("failed to scan embedding: %v", err)
		return nil, "", nil
	}

	vector, err := jsonToVector(vectorJSON)
	if err != nil {
		log.Warnf("failed to parse embedding vector: %v", err)
		return nil, "", nil
	}

	return vector, version, nil
}
