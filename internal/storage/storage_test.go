package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s := NewStorage(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, s.Init())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStorageDefaultPath(t *testing.T) {
	s := NewStorage("")
	if DefaultPath() == "" {
		assert.False(t, s.Enabled())
		return
	}
	assert.Equal(t, DefaultPath(), s.Path())
	assert.Equal(t, ".toolgate", filepath.Base(filepath.Dir(s.Path())))
}

func TestInitCreatesDatabase(t *testing.T) {
	s := newTestStorage(t)
	assert.True(t, s.Enabled())
	_, err := os.Stat(s.Path())
	assert.NoError(t, err)

	// Init is idempotent
	require.NoError(t, s.Init())
}

func TestMigrationsAreRecorded(t *testing.T) {
	s := newTestStorage(t)
	v, err := s.getCurrentMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRecordAndStats(t *testing.T) {
	s := newTestStorage(t)
	now := time.Now()

	require.NoError(t, s.RecordSearch(SearchRecord{
		SearchID:     "s-1",
		QueryHash:    HashQuery("add two numbers"),
		Timestamp:    now,
		ResultsCount: 3,
		TopResult:    "add",
	}))
	require.NoError(t, s.RecordSearch(SearchRecord{SearchID: "s-2", QueryHash: HashQuery("x"), Timestamp: now}))

	records := []ExecutionRecord{
		{Operation: "add", Success: true, ElapsedMS: 1, Timestamp: now},
		{Operation: "add", Success: true, ElapsedMS: 1, Timestamp: now},
		{Operation: "divide", Success: false, ErrorKind: "ComputationError", Timestamp: now},
		{Operation: "add", Success: false, ErrorKind: "InvalidParameters", Timestamp: now},
		{Operation: "old", Success: true, Timestamp: now.Add(-48 * time.Hour)},
	}
	for _, r := range records {
		require.NoError(t, s.RecordExecution(r))
	}

	stats, err := s.Stats(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Searches)
	assert.Equal(t, 4, stats.Executions)
	assert.Equal(t, 2, stats.Failures)
	assert.Equal(t, map[string]int{"ComputationError": 1, "InvalidParameters": 1}, stats.FailuresByKind)
	require.NotEmpty(t, stats.TopOperations)
	assert.Equal(t, OperationCount{Operation: "add", Count: 3}, stats.TopOperations[0])

	require.NoError(t, s.Cleanup(24*time.Hour))
	stats, err = s.Stats(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Executions)
}

func TestEmbeddingCache(t *testing.T) {
	s := newTestStorage(t)

	vec, version, err := s.GetEmbedding("missing")
	require.NoError(t, err)
	assert.Nil(t, vec)
	assert.Empty(t, version)

	require.NoError(t, s.SaveEmbedding("k", []float32{0.25, -1}, "hash-v1"))
	vec, version, err = s.GetEmbedding("k")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -1}, vec)
	assert.Equal(t, "hash-v1", version)

	require.NoError(t, s.SaveEmbedding("k", []float32{1}, "hash-v2"))
	vec, version, _ = s.GetEmbedding("k")
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, "hash-v2", version)
}

func TestCleanupPrunesEmbeddingCache(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SaveEmbedding("old", []float32{1}, "v"))
	require.NoError(t, s.SaveEmbedding("fresh", []float32{2}, "v"))
	old := time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339)
	_, err := s.db.Exec("UPDATE embedding_cache SET created_at = ? WHERE cache_key = ?", old, "old")
	require.NoError(t, err)

	require.NoError(t, s.Cleanup(24*time.Hour))
	vec, _, err := s.GetEmbedding("old")
	require.NoError(t, err)
	assert.Nil(t, vec)
	vec, _, err = s.GetEmbedding("fresh")
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, vec)
}

func TestCleanupCapsEmbeddingCache(t *testing.T) {
	s := newTestStorage(t)
	prev := maxCachedEmbeddings
	maxCachedEmbeddings = 2
	t.Cleanup(func() { maxCachedEmbeddings = prev })

	for i, key := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveEmbedding(key, []float32{float32(i)}, "v"))
		stamp := time.Now().Add(time.Duration(i-3) * time.Minute).UTC().Format(time.RFC3339)
		_, err := s.db.Exec("UPDATE embedding_cache SET created_at = ? WHERE cache_key = ?", stamp, key)
		require.NoError(t, err)
	}

	require.NoError(t, s.Cleanup(24*time.Hour))
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM embedding_cache").Scan(&n))
	assert.Equal(t, 2, n)
	vec, _, err := s.GetEmbedding("a")
	require.NoError(t, err)
	assert.Nil(t, vec, "the oldest entry is trimmed")
}

func TestHashQuery(t *testing.T) {
	h := HashQuery("test query for hashing")
	assert.Equal(t, h, HashQuery("test query for hashing"))
	assert.Len(t, h, 64)
	assert.NotEqual(t, h, HashQuery("other"))
}

func TestGracefulDegradation(t *testing.T) {
	// A regular file where a directory is expected makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s := NewStorage(filepath.Join(blocker, "sub", "history.db"))
	assert.Error(t, s.Init())
	assert.False(t, s.Enabled())

	assert.NoError(t, s.RecordSearch(SearchRecord{SearchID: "x"}))
	assert.NoError(t, s.RecordExecution(ExecutionRecord{Operation: "x"}))
	assert.NoError(t, s.SaveEmbedding("k", []float32{1}, "v"))
	vec, _, err := s.GetEmbedding("k")
	assert.NoError(t, err)
	assert.Nil(t, vec)
	stats, err := s.Stats(time.Time{})
	assert.NoError(t, err)
	assert.Zero(t, stats.Executions)
	assert.NoError(t, s.Cleanup(time.Hour))
	assert.NoError(t, s.Close())
}
