package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/khanglvm/toolgate/internal/log"
)

// DefaultCacheSize bounds the in-memory cache of a CachedEmbedder.
const DefaultCacheSize = 4096

// Cache persists vectors between runs. storage.SQLiteStorage implements it.
type Cache interface {
	SaveEmbedding(key string, vector []float32, version string) error
	GetEmbedding(key string) ([]float32, string, error)
}

// CachedEmbedder memoizes an Embedder in a bounded LRU and, optionally, in a
// persistent Cache. Persisted entries are reused only when their version
// matches the wrapped embedder's Model.
type CachedEmbedder struct {
	inner Embedder
	store Cache
	log   log.Logger
	cache *lru.Cache[string, []float32]
}

// CacheOption configures a CachedEmbedder.
type CacheOption func(*cacheOptions)

type cacheOptions struct {
	size int
}

// WithCacheSize bounds the in-memory cache to n entries.
func WithCacheSize(n int) CacheOption {
	return func(o *cacheOptions) {
		if n > 0 {
			o.size = n
		}
	}
}

// NewCachedEmbedder wraps inner. store may be nil.
func NewCachedEmbedder(inner Embedder, store Cache, logger log.Logger, opts ...CacheOption) *CachedEmbedder {
	o := cacheOptions{size: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	// New fails only for a non-positive size.
	cache, _ := lru.New[string, []float32](o.size)
	return &CachedEmbedder{
		inner: inner,
		store: store,
		log:   log.OrDefault(logger),
		cache: cache,
	}
}

// Embed returns the cached vector for text, computing it on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := TextKey(text)

	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	if c.store != nil {
		vec, version, err := c.store.GetEmbedding(key)
		if err == nil && vec != nil && version == c.inner.Model() && len(vec) == c.inner.Dimensions() {
			c.cache.Add(key, vec)
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)

	if c.store != nil {
		if err := c.store.SaveEmbedding(key, vec, c.inner.Model()); err != nil {
			c.log.Warnf("failed to persist embedding: %v", err)
		}
	}
	return vec, nil
}

// Dimensions returns the wrapped embedder's dimensions.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// Model returns the wrapped embedder's model.
func (c *CachedEmbedder) Model() string { return c.inner.Model() }

// ClearCache drops the in-memory cache.
func (c *CachedEmbedder) ClearCache() { c.cache.Purge() }

// Len returns the number of vectors held in memory.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

// TextKey is the cache key for text.
func TextKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
