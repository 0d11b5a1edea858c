package storage

import (
	"time"

	"github.com/khanglvm/toolgate/internal/log"
)

// RecordSearch records a search.
func (s *SQLiteStorage) RecordSearch(search SearchRecord) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO search_history (search_id, query_hash, category, timestamp, results_count, top_result)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		search.SearchID,
		search.QueryHash,
		search.Category,
		search.Timestamp.UTC().Format(time.RFC3339),
		search.ResultsCount,
		search.TopResult,
	)

	if err != nil {
		log.Warnf("failed to record search: %v", err)
	}

	return nil
}

// RecordExecution records an execution attempt.
func (s *SQLiteStorage) RecordExecution(exec ExecutionRecord) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	success := 0
	if exec.Success {
		success = 1
	}

	query := `
		INSERT INTO execution_log (operation, success, error_kind, elapsed_ms, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		exec.Operation,
		success,
		exec.ErrorKind,
		exec.ElapsedMS,
		exec.Timestamp.UTC().Format(time.RFC3339),
	)

	if err != nil {
		log.Warnf("failed to record execution: %v", err)
	}

	return nil
}

// Stats summarizes history recorded at or after since.
func (s *SQLiteStorage) Stats(since time.Time) (Stats, error) {
	stats := Stats{FailuresByKind: map[string]int{}}
	if !s.enabled || s.db == nil {
		return stats, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := since.UTC().Format(time.RFC3339)

	if err := s.db.QueryRow("SELECT COUNT(*) FROM search_history WHERE timestamp >= ?", cutoff).Scan(&stats.Searches); err != nil {
		log.Warnf("failed to count searches: %v", err)
		return stats, nil
	}
	if err := s.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) FROM execution_log WHERE timestamp >= ?",
		cutoff,
	).Scan(&stats.Executions, &stats.Failures); err != nil {
		log.Warnf("failed to count executions: %v", err)
		return stats, nil
	}

	rows, err := s.db.Query(
		"SELECT error_kind, COUNT(*) FROM execution_log WHERE success = 0 AND timestamp >= ? GROUP BY error_kind",
		cutoff,
	)
	if err == nil {
		for rows.Next() {
			var kind string
			var n int
			if err := rows.Scan(&kind, &n); err == nil {
				stats.FailuresByKind[kind] = n
			}
		}
		rows.Close()
	}

	rows, err = s.db.Query(`
		SELECT operation, COUNT(*) AS n FROM execution_log
		WHERE timestamp >= ?
		GROUP BY operation ORDER BY n DESC, operation ASC LIMIT 5`,
		cutoff,
	)
	if err == nil {
		for rows.Next() {
			var oc OperationCount
			if err := rows.Scan(&oc.Operation, &oc.Count); err == nil {
				stats.TopOperations = append(stats.TopOperations, oc)
			}
		}
		rows.Close()
	}

	return stats, nil
}

// maxCachedEmbeddings caps the embedding_cache table after Cleanup.
var maxCachedEmbeddings = 10000

// Cleanup removes records and cached embeddings older than retention and
// trims the embedding cache to its newest maxCachedEmbeddings rows.
func (s *SQLiteStorage) Cleanup(retention time.Duration) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339)

	if _, err := s.db.Exec("DELETE FROM execution_log WHERE timestamp < ?", cutoff); err != nil {
		log.Warnf("failed to cleanup execution_log: %v", err)
	}
	if _, err := s.db.Exec("DELETE FROM search_history WHERE timestamp < ?", cutoff); err != nil {
		log.Warnf("failed to cleanup search_history: %v", err)
	}
	if _, err := s.db.Exec("DELETE FROM embedding_cache WHERE created_at < ?", cutoff); err != nil {
		log.Warnf("failed to cleanup embedding_cache: %v", err)
	}
	if _, err := s.db.Exec(`
		DELETE FROM embedding_cache WHERE cache_key NOT IN (
			SELECT cache_key FROM embedding_cache ORDER BY created_at DESC, cache_key ASC LIMIT ?
		)`, maxCachedEmbeddings); err != nil {
		log.Warnf("failed to trim embedding_cache: %v", err)
	}
	if _, err := s.db.Exec("VACUUM"); err != nil {
		log.Warnf("failed to vacuum database: %v", err)
	}

	return nil
}
