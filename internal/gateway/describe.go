package gateway

import (
	"context"
	"sort"
	"time"

	"github.com/khanglvm/toolgate/internal/storage"
	"github.com/khanglvm/toolgate/internal/version"
)

// CategoryCount pairs a category with its number of operations.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// EmbedderInfo identifies the embedding model in use.
type EmbedderInfo struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// Health reports whether the gateway can serve searches.
type Health struct {
	// Healthy is true when the store answers and the index was built.
	Healthy        bool   `json:"healthy"`
	StoreReachable bool   `json:"storeReachable"`
	IndexBuilt     bool   `json:"indexBuilt"`
	Error          string `json:"error,omitempty"`

	// FailedProviders lists remote servers that could not be listed.
	FailedProviders map[string]string `json:"failedProviders,omitempty"`
}

// Description is the server_info payload.
type Description struct {
	Version       string          `json:"version"`
	CatalogSize   int             `json:"catalogSize"`
	IndexedCount  int             `json:"indexedCount"`
	Skipped       int             `json:"skipped"`
	Categories    []CategoryCount `json:"categories"`
	Embedder      EmbedderInfo    `json:"embedder"`
	Health        Health          `json:"health"`
	LastBuild     *time.Time      `json:"lastBuild,omitempty"`
	UptimeSeconds float64         `json:"uptimeSeconds"`
	History       *storage.Stats  `json:"history,omitempty"`
}

// FailureReporter is implemented by registries that tolerate failing providers.
type FailureReporter interface {
	Failures() map[string]error
}

// Describe summarizes the catalog, the index and the gateway's health.
func (g *Gateway) Describe(ctx context.Context) (Description, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.describe")
	defer span.End()

	descs, err := g.registry.List(ctx)
	if err != nil {
		return Description{}, err
	}
	counts := countCategories(descs)

	d := Description{
		Version:     version.Version,
		CatalogSize: len(descs),
		Embedder: EmbedderInfo{
			Model:      g.embedder.Model(),
			Dimensions: g.embedder.Dimensions(),
		},
		UptimeSeconds: time.Since(g.started).Seconds(),
	}
	for name, n := range counts {
		d.Categories = append(d.Categories, CategoryCount{Name: name, Count: n})
	}
	sort.Slice(d.Categories, func(i, j int) bool { return d.Categories[i].Name < d.Categories[j].Name })

	indexed, err := g.indexer.Count(ctx)
	if err != nil {
		d.Health.Error = err.Error()
	} else {
		d.Health.StoreReachable = true
		d.IndexedCount = indexed
	}

	g.mu.RLock()
	d.Health.IndexBuilt = g.built
	if g.built {
		at := g.lastBuild
		d.LastBuild = &at
		d.Skipped = g.report.Skipped
	}
	g.mu.RUnlock()
	d.Health.Healthy = d.Health.StoreReachable && d.Health.IndexBuilt

	if g.providers != nil {
		for name, err := range g.providers.Failures() {
			if d.Health.FailedProviders == nil {
				d.Health.FailedProviders = make(map[string]string)
			}
			d.Health.FailedProviders[name] = err.Error()
		}
	}

	if g.stats != nil && g.stats.Enabled() {
		if st, err := g.stats.Stats(time.Now().Add(-statsWindow)); err != nil {
			g.log.Warnf("history stats unavailable: %v", err)
		} else {
			d.History = &st
		}
	}
	return d, nil
}
