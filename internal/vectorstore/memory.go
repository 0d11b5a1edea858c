package vectorstore

import (
	"context"
	"fmt"
	"sync"
)

type record struct {
	vector   []float32
	metadata map[string]string
}

// MemoryStore is a Store held in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	records     map[string]record
	fingerprint string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]record)}
}

// Upsert stores copies of vector and metadata.
func (m *MemoryStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	m.mu.Lock()
	m.records[id] = record{vector: vec, metadata: copyMeta(metadata)}
	m.mu.Unlock()
	return nil
}

// Query scans every record.
func (m *MemoryStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Match{}, nil
	}

	m.mu.RLock()
	matches := make([]Match, 0, len(m.records))
	for id, r := range m.records {
		if len(r.vector) != len(vector) {
			m.mu.RUnlock()
			return nil, fmt.Errorf("%w: %s has %d dimensions, query has %d", ErrDimensionMismatch, id, len(r.vector), len(vector))
		}
		matches = append(matches, Match{ID: id, Metadata: copyMeta(r.metadata), Score: Score(vector, r.vector)})
	}
	m.mu.RUnlock()

	return rank(matches, k), nil
}

// Count returns the number of records.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Reset drops every record.
func (m *MemoryStore) Reset(context.Context) error {
	m.mu.Lock()
	m.records = make(map[string]record)
	m.fingerprint = ""
	m.mu.Unlock()
	return nil
}

// Fingerprint returns the recorded fingerprint.
func (m *MemoryStore) Fingerprint(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fingerprint, nil
}

// SetFingerprint records fp.
func (m *MemoryStore) SetFingerprint(_ context.Context, fp string) error {
	m.mu.Lock()
	m.fingerprint = fp
	m.mu.Unlock()
	return nil
}

// ConcurrentWrites is true.
func (m *MemoryStore) ConcurrentWrites() bool { return true }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
