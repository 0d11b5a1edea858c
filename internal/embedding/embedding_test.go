package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanglvm/toolgate/internal/log"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(0)
	assert.Equal(t, DefaultHashDimensions, e.Dimensions())

	a, err := e.Embed(context.Background(), "Add two numbers together")
	require.NoError(t, err)
	b, err := NewHashEmbedder(0).Embed(context.Background(), "Add two numbers together")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, DefaultHashDimensions)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(512)
	ctx := context.Background()

	add, _ := e.Embed(ctx, "add two numbers sum plus addition")
	query, _ := e.Embed(ctx, "I need to add two numbers")
	area, _ := e.Embed(ctx, "area of a circle from its radius")

	assert.Greater(t, cosine(add, query), cosine(area, query))
}

func TestTokenize(t *testing.T) {
	e := NewHashEmbedder(16)
	assert.Equal(t, []string{"add", "number", "together"}, e.Tokenize("Add the NUMBERS together!"))
	assert.Equal(t, []string{"solve", "quadratic"}, e.Tokenize("solve_quadratic"))
	assert.Equal(t, []string{"class"}, e.Tokenize("class"))
	assert.Empty(t, e.Tokenize("the of and"))
}

func TestHashEmbedderEmptyTextIsZero(t *testing.T) {
	v, err := NewHashEmbedder(8).Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestHashEmbedderHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEmbedder(8).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIEmbedder(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float64{0.5, 0.25, 0.125}},
			},
			"model": "text-embedding-3-small",
			"usage": map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(WithBaseURL(srv.URL), WithAPIKey("dummy"), WithDimensions(3))
	assert.Equal(t, DefaultOpenAIModel, e.Model())
	assert.Equal(t, 3, e.Dimensions())

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 0.125}, vec)
	assert.EqualValues(t, 3, gotBody["dimensions"])

	_, err = e.Embed(context.Background(), "")
	assert.Error(t, err)
}

func TestOpenAIEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOpenAIEmbedder(WithBaseURL(srv.URL), WithAPIKey("dummy")).Embed(context.Background(), "x")
	assert.Error(t, err)
}

type countingEmbedder struct {
	calls int
	fail  bool
}

func (c *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("down")
	}
	return []float32{1, 0}, nil
}
func (c *countingEmbedder) Dimensions() int { return 2 }
func (c *countingEmbedder) Model() string   { return "count-v1" }

type mapCache struct {
	vecs     map[string][]float32
	versions map[string]string
}

func (m *mapCache) SaveEmbedding(key string, v []float32, version string) error {
	m.vecs[key] = v
	m.versions[key] = version
	return nil
}

func (m *mapCache) GetEmbedding(key string) ([]float32, string, error) {
	return m.vecs[key], m.versions[key], nil
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	store := &mapCache{vecs: map[string][]float32{}, versions: map[string]string{}}
	c := NewCachedEmbedder(inner, store, log.Nop)
	ctx := context.Background()

	_, err := c.Embed(ctx, "x")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "count-v1", store.versions[TextKey("x")])

	// a fresh cache over the same store is served from persistence
	c2 := NewCachedEmbedder(inner, store, log.Nop)
	_, err = c2.Embed(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	// stale versions are recomputed
	store.versions[TextKey("y")] = "old"
	store.vecs[TextKey("y")] = []float32{0, 1}
	_, err = c2.Embed(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	c2.ClearCache()
	inner.fail = true
	_, err = c2.Embed(ctx, "z")
	assert.Error(t, err)
}

func TestCachedEmbedderIsBounded(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, nil, log.Nop, WithCacheSize(2))
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		_, err := c.Embed(ctx, text)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, inner.calls)

	// "a" was evicted, "c" is still cached
	_, err := c.Embed(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
	_, err = c.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 4, inner.calls)

	c.ClearCache()
	assert.Zero(t, c.Len())
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}
