package gateway

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/khanglvm/toolgate/internal/catalog"
	"github.com/khanglvm/toolgate/internal/config"
	"github.com/khanglvm/toolgate/internal/embedding"
	"github.com/khanglvm/toolgate/internal/history"
	"github.com/khanglvm/toolgate/internal/log"
	"github.com/khanglvm/toolgate/internal/mathops"
	"github.com/khanglvm/toolgate/internal/search"
	"github.com/khanglvm/toolgate/internal/spawner"
	"github.com/khanglvm/toolgate/internal/storage"
	"github.com/khanglvm/toolgate/internal/vectorstore"
)

// DefaultIndexPath returns ~/.toolgate/index.db, or "" if the home directory
// is unknown.
func DefaultIndexPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".toolgate", "index.db")
}

// FromConfig wires a Gateway from cfg: the built-in math catalog plus every
// configured child server, an optional catalog overlay, the configured
// embedder and vector store, and history. The index is not built.
func FromConfig(ctx context.Context, cfg *config.Config, logger log.Logger) (*Gateway, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	cfg.ApplyDefaults()
	s := cfg.Settings
	logger = log.OrDefault(logger)

	var closers []io.Closer
	fail := func(err error) (*Gateway, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	reg, remote, pool, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		closers = append(closers, pool)
	}

	var db *storage.SQLiteStorage
	if s.History.Enabled || s.Embedder.Cache {
		db = storage.NewStorage(s.History.Path)
		if err := db.Init(); err != nil {
			logger.Warnf("history database unavailable: %v", err)
		}
		if db.Enabled() {
			closers = append(closers, db)
			if err := db.Cleanup(s.Retention()); err != nil {
				logger.Warnf("history cleanup failed: %v", err)
			}
		}
	}

	emb, err := buildEmbedder(s.Embedder, db, logger)
	if err != nil {
		return fail(err)
	}

	store, err := openStore(s.Store)
	if err != nil {
		return fail(err)
	}

	opts := Options{
		Registry: reg,
		Embedder: emb,
		Store:    store,
		Search: search.Options{
			DefaultLimit:    s.Search.DefaultLimit,
			MaxLimit:        s.Search.MaxLimit,
			OverfetchFactor: s.Search.OverfetchFactor,
			MinSimilarity:   s.Search.MinSimilarity,
			KeywordWeight:   s.Search.KeywordWeight,
			QueryTimeout:    s.SearchTimeout(),
		},
		ExecutionTimeout: s.ExecutionTimeout(),
		Parallelism:      s.Index.Parallelism,
		Closers:          closers,
		Logger:           logger,
	}
	if remote != nil {
		opts.Providers = remote
	}
	if s.History.Enabled && db != nil && db.Enabled() {
		opts.History = history.NewTracker(db, logger)
		opts.HistoryStore = db
	}

	g, err := New(opts)
	if err != nil {
		if opts.History != nil {
			opts.History.Stop()
		}
		_ = store.Close()
		return fail(err)
	}
	return g, nil
}

// buildRegistry composes the built-in catalog, the remote servers and the
// overlay. remote and pool are nil when no servers are configured.
func buildRegistry(cfg *config.Config, logger log.Logger) (catalog.Registry, *spawner.Registry, *spawner.Pool, error) {
	members := []catalog.Registry{mathops.New()}

	var remote *spawner.Registry
	var pool *spawner.Pool
	if len(cfg.Servers) > 0 {
		pool = spawner.NewPool(cfg.Settings.ProcessPoolSize, logger)
		remote = spawner.NewRegistry(pool, cfg.Servers, logger, spawner.WithListTimeout(cfg.Settings.ExecutionTimeout()))
		members = append(members, remote)
	}

	var reg catalog.Registry = catalog.Compose(members...)
	if path := cfg.Settings.CatalogPath; path != "" {
		ov, err := catalog.LoadOverlay(path)
		if err != nil {
			if pool != nil {
				_ = pool.Close()
			}
			return nil, nil, nil, fmt.Errorf("failed to load catalog overlay: %w", err)
		}
		reg = catalog.WithOverlay(reg, ov)
	}
	return reg, remote, pool, nil
}

// buildEmbedder selects the provider and wraps it in a cache. Persistent
// caching needs an enabled history database.
func buildEmbedder(s config.EmbedderSettings, db *storage.SQLiteStorage, logger log.Logger) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch s.Provider {
	case config.ProviderHash, "":
		inner = embedding.NewHashEmbedder(s.Dimensions)
	case config.ProviderOpenAI:
		opts := []embedding.OpenAIOption{
			embedding.WithModel(s.Model),
			embedding.WithDimensions(s.Dimensions),
			embedding.WithBaseURL(s.BaseURL),
		}
		if s.APIKeyEnv != "" {
			if key := os.Getenv(s.APIKeyEnv); key != "" {
				opts = append(opts, embedding.WithAPIKey(key))
			}
		}
		inner = embedding.NewOpenAIEmbedder(opts...)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", s.Provider)
	}

	var cache embedding.Cache
	if s.Cache && db != nil && db.Enabled() {
		cache = db
	}
	return embedding.NewCachedEmbedder(inner, cache, logger), nil
}

func openStore(s config.StoreSettings) (vectorstore.Store, error) {
	switch s.Driver {
	case config.DriverMemory, "":
		return vectorstore.NewMemoryStore(), nil
	case config.DriverSQLite:
		path := s.Path
		if path == "" {
			path = DefaultIndexPath()
		}
		if path == "" {
			return nil, fmt.Errorf("store.path is required: failed to resolve home directory")
		}
		store, err := vectorstore.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", s.Driver)
	}
}
