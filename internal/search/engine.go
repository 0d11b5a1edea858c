package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/khanglvm/toolgate/internal/fault"
	"github.com/khanglvm/toolgate/internal/log"
)

// Search defaults.
const (
	DefaultLimit           = 5
	DefaultMaxLimit        = 20
	DefaultOverfetchFactor = 3
	DefaultQueryTimeout    = 10 * time.Second
)

// Options tunes the Engine. Zero values select the defaults above.
type Options struct {
	DefaultLimit    int
	MaxLimit        int
	OverfetchFactor int

	// MinSimilarity drops candidates scoring below it. Zero disables the floor.
	MinSimilarity float64

	// KeywordWeight enables BM25 re-ranking when > 0.
	KeywordWeight float64

	// QueryTimeout bounds embedding plus the store query.
	QueryTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = DefaultLimit
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = DefaultMaxLimit
	}
	if o.DefaultLimit > o.MaxLimit {
		o.DefaultLimit = o.MaxLimit
	}
	if o.OverfetchFactor <= 0 {
		o.OverfetchFactor = DefaultOverfetchFactor
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = DefaultQueryTimeout
	}
}

// Request is one search call.
type Request struct {
	Query string `json:"query"`

	// Limit of 0 selects the default; other values are clamped to [1, MaxLimit].
	Limit int `json:"limit,omitempty"`

	// Category, when set, keeps only operations in that category (case-insensitive).
	Category string `json:"category,omitempty"`
}

// Engine answers search requests against an Indexer's store. It is read-only
// and safe for concurrent use.
type Engine struct {
	ix   *Indexer
	opts Options
	log  log.Logger
}

// NewEngine returns an Engine reading the index built by ix.
func NewEngine(ix *Indexer, opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{ix: ix, opts: opts, log: ix.log}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// ClampLimit applies the default and ceiling to a requested limit.
func (e *Engine) ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return e.opts.DefaultLimit
	case limit < 1:
		return 1
	case limit > e.opts.MaxLimit:
		return e.opts.MaxLimit
	}
	return limit
}

// Search ranks operations for req.Query.
//
// An empty catalog yields an empty slice. Embedder or store failures yield a
// SearchUnavailable error, never an empty slice.
func (e *Engine) Search(ctx context.Context, req Request) ([]SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fault.Invalid(fault.FieldError{Field: "query", Reason: "must not be empty"})
	}
	limit := e.ClampLimit(req.Limit)
	category := strings.TrimSpace(req.Category)

	ctx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
	defer cancel()

	e.ix.gate.RLock()
	defer e.ix.gate.RUnlock()

	count, err := e.ix.store.Count(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.SearchUnavailable, err, "vector store unavailable: "+err.Error())
	}
	if count == 0 {
		return []SearchResult{}, nil
	}

	vec, err := e.ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fault.Wrap(fault.SearchUnavailable, err, "embedder unavailable: "+err.Error())
	}

	matches, err := e.ix.store.Query(ctx, vec, limit*e.opts.OverfetchFactor)
	if err != nil {
		return nil, fault.Wrap(fault.SearchUnavailable, err, "vector store query failed: "+err.Error())
	}

	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		r := decodeResult(m.ID, m.Metadata, m.Score)
		if category != "" && !strings.EqualFold(r.Category, category) {
			continue
		}
		results = append(results, r)
	}

	if e.opts.KeywordWeight > 0 && e.ix.keywords != nil && len(results) > 0 {
		scores, err := e.ix.keywords.Search(query, limit*e.opts.OverfetchFactor)
		if err != nil {
			e.log.Warnf("keyword re-rank skipped: %v", err)
		} else {
			results = fuseScores(results, scores, Fusion(e.opts.KeywordWeight))
		}
	}

	kept := results[:0]
	for _, r := range results {
		r.Score = clamp01(r.Score)
		if e.opts.MinSimilarity > 0 && r.Score < e.opts.MinSimilarity {
			continue
		}
		kept = append(kept, r)
	}
	results = kept

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}
