package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			require.NoError(t, s.Upsert(ctx, "x", []float32{1, 0}, map[string]string{"name": "x"}))
			require.NoError(t, s.Upsert(ctx, "y", []float32{0, 1}, nil))
			require.NoError(t, s.Upsert(ctx, "neg", []float32{-1, 0}, nil))
			require.NoError(t, s.Upsert(ctx, "x2", []float32{2, 0}, nil))

			n, err = s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			got, err := s.Query(ctx, []float32{1, 0}, 10)
			require.NoError(t, err)
			require.Len(t, got, 4)
			// x and x2 tie at 1.0 and are ordered by id
			assert.Equal(t, "x", got[0].ID)
			assert.Equal(t, "x2", got[1].ID)
			assert.Equal(t, "x", got[0].Metadata["name"])
			for _, m := range got {
				assert.GreaterOrEqual(t, m.Score, 0.0)
				assert.LessOrEqual(t, m.Score, 1.0)
			}
			assert.Equal(t, 0.0, got[3].Score)

			got, err = s.Query(ctx, []float32{1, 0}, 1)
			require.NoError(t, err)
			assert.Len(t, got, 1)

			got, err = s.Query(ctx, []float32{1, 0}, 0)
			require.NoError(t, err)
			assert.Empty(t, got)

			// upsert replaces
			require.NoError(t, s.Upsert(ctx, "y", []float32{1, 0}, map[string]string{"v": "2"}))
			n, _ = s.Count(ctx)
			assert.Equal(t, 4, n)

			require.NoError(t, s.Reset(ctx))
			n, _ = s.Count(ctx)
			assert.Zero(t, n)
		})
	}
}

func TestMemoryStoreCopiesInputs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	vec := []float32{1, 0}
	meta := map[string]string{"k": "v"}
	require.NoError(t, s.Upsert(ctx, "a", vec, meta))
	vec[0] = -1
	meta["k"] = "changed"

	got, err := s.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, "v", got[0].Metadata["k"])
}

func TestSQLiteStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "a", []float32{0.5, 0.5}, map[string]string{"name": "a"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, s.ConcurrentWrites())
	assert.Equal(t, path, s.Path())
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.0, Score([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Score([]float32{0, 0}, []float32{1, 2}))
	assert.Equal(t, 0.0, Score([]float32{1, 0}, []float32{-1, 0}))
	assert.InDelta(t, 1.0, Score([]float32{1, 1}, []float32{3, 3}), 1e-9)
}

func TestStoreDimensionMismatch(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Upsert(ctx, "a", []float32{1, 0, 0}, nil))

			got, err := s.Query(ctx, []float32{1, 0}, 5)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrDimensionMismatch)

			got, err = s.Query(ctx, []float32{1, 0, 0}, 5)
			require.NoError(t, err)
			assert.Len(t, got, 1)
		})
	}
}

func TestStoreFingerprint(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			fp, err := s.Fingerprint(ctx)
			require.NoError(t, err)
			assert.Empty(t, fp)

			require.NoError(t, s.SetFingerprint(ctx, "hash-fnv1a-2/2/abc"))
			require.NoError(t, s.SetFingerprint(ctx, "hash-fnv1a-2/2/def"))
			fp, err = s.Fingerprint(ctx)
			require.NoError(t, err)
			assert.Equal(t, "hash-fnv1a-2/2/def", fp)

			require.NoError(t, s.Reset(ctx))
			fp, err = s.Fingerprint(ctx)
			require.NoError(t, err)
			assert.Empty(t, fp)
		})
	}
}

func TestSQLiteFingerprintPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fp.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.SetFingerprint(ctx, "model/3/xyz"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	fp, err := s.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "model/3/xyz", fp)
}
