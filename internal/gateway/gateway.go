/*
Package gateway composes the catalog, index, search and execution engines
into the single facade served by the MCP and CLI surfaces.

The lifecycle is explicit:

	gw, _ := gateway.New(gateway.Options{...})
	gw.Build(ctx)          // index the catalog
	gw.Search(ctx, req)    // rank operations
	gw.Execute(ctx, req)   // run one
	gw.Rebuild(ctx)        // forced re-index
	gw.Close()
*/
package gateway

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/khanglvm/toolgate/internal/catalog"
	"github.com/khanglvm/toolgate/internal/embedding"
	"github.com/khanglvm/toolgate/internal/execute"
	"github.com/khanglvm/toolgate/internal/fault"
	"github.com/khanglvm/toolgate/internal/history"
	"github.com/khanglvm/toolgate/internal/log"
	"github.com/khanglvm/toolgate/internal/search"
	"github.com/khanglvm/toolgate/internal/storage"
	"github.com/khanglvm/toolgate/internal/vectorstore"
	"github.com/khanglvm/toolgate/internal/version"
)

// instrumentationName names the tracer and meter.
const instrumentationName = "github.com/khanglvm/toolgate/internal/gateway"

// Metric names.
const (
	MetricSearches   = "toolgate.searches"
	MetricExecutions = "toolgate.executions"
)

// Attribute keys.
const (
	attrOperation = attribute.Key("toolgate.operation")
	attrCategory  = attribute.Key("toolgate.category")
	attrKind      = attribute.Key("toolgate.error.kind")
	attrSuccess   = attribute.Key("toolgate.success")
	attrResults   = attribute.Key("toolgate.results")
	attrForce     = attribute.Key("toolgate.index.force")
)

// statsWindow is how far back Describe reports history.
const statsWindow = 30 * 24 * time.Hour

// Options configures a Gateway. Registry, Embedder and Store are required.
type Options struct {
	Registry catalog.Registry
	Embedder embedding.Embedder
	Store    vectorstore.Store

	Search           search.Options
	ExecutionTimeout time.Duration
	Parallelism      int

	// History records searches and executions when set.
	History *history.Tracker

	// HistoryStore backs the history stats in Describe. May be nil.
	HistoryStore storage.Storage

	// Providers reports remote servers that failed to list. May be nil;
	// Registry is used when it implements FailureReporter.
	Providers FailureReporter

	// Closers are released by Close after the gateway's own resources.
	Closers []io.Closer

	Logger         log.Logger
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Gateway is the discovery and execution facade. It is safe for concurrent use.
type Gateway struct {
	registry  catalog.Registry
	embedder  embedding.Embedder
	store     vectorstore.Store
	keywords  *search.KeywordIndex
	indexer   *search.Indexer
	search    *search.Engine
	exec      *execute.Engine
	history   *history.Tracker
	stats     storage.Storage
	providers FailureReporter
	closers   []io.Closer
	log       log.Logger

	tracer     trace.Tracer
	searches   metric.Int64Counter
	executions metric.Int64Counter

	started time.Time

	mu        sync.RWMutex
	built     bool
	lastBuild time.Time
	report    search.IndexReport

	closeOnce sync.Once
	closeErr  error
}

// New assembles a Gateway. It does not build the index.
func New(opts Options) (*Gateway, error) {
	if opts.Registry == nil || opts.Embedder == nil || opts.Store == nil {
		return nil, errors.New("gateway: registry, embedder and store are required")
	}
	logger := log.OrDefault(opts.Logger)

	g := &Gateway{
		registry:  opts.Registry,
		embedder:  opts.Embedder,
		store:     opts.Store,
		history:   opts.History,
		stats:     opts.HistoryStore,
		providers: opts.Providers,
		closers:   opts.Closers,
		log:       logger,
		started:   time.Now(),
	}

	if g.providers == nil {
		if fr, ok := opts.Registry.(FailureReporter); ok {
			g.providers = fr
		}
	}

	ixOpts := []search.IndexerOption{
		search.WithParallelism(opts.Parallelism),
		search.WithLogger(logger),
	}
	if opts.Search.KeywordWeight > 0 {
		k, err := search.NewKeywordIndex()
		if err != nil {
			return nil, err
		}
		g.keywords = k
		ixOpts = append(ixOpts, search.WithKeywordIndex(k))
	}
	g.indexer = search.NewIndexer(opts.Registry, opts.Embedder, opts.Store, ixOpts...)
	g.search = search.NewEngine(g.indexer, opts.Search)

	exec, err := execute.NewEngine(opts.Registry,
		execute.WithDefaultTimeout(opts.ExecutionTimeout),
		execute.WithLogger(logger),
	)
	if err != nil {
		g.closeKeywords()
		return nil, err
	}
	g.exec = exec

	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	g.tracer = tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(version.Version))

	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(version.Version))
	if g.searches, err = meter.Int64Counter(MetricSearches,
		metric.WithDescription("Number of search requests"),
		metric.WithUnit("{search}"),
	); err != nil {
		g.closeKeywords()
		return nil, err
	}
	if g.executions, err = meter.Int64Counter(MetricExecutions,
		metric.WithDescription("Number of execution requests"),
		metric.WithUnit("{execution}"),
	); err != nil {
		g.closeKeywords()
		return nil, err
	}
	return g, nil
}

// Build indexes the catalog. When the store already holds entries the
// embedding pass is skipped.
func (g *Gateway) Build(ctx context.Context) (search.IndexReport, error) {
	return g.build(ctx, false)
}

// Rebuild discards the index and embeds every operation again.
func (g *Gateway) Rebuild(ctx context.Context) (search.IndexReport, error) {
	return g.build(ctx, true)
}

func (g *Gateway) build(ctx context.Context, force bool) (search.IndexReport, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.build", trace.WithAttributes(attrForce.Bool(force)))
	defer span.End()

	report, err := g.indexer.BuildIndex(ctx, force)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return report, err
	}
	span.SetAttributes(
		attribute.Int("toolgate.index.indexed", report.Indexed),
		attribute.Int("toolgate.index.skipped", report.Skipped),
		attribute.Bool("toolgate.index.fast_path", report.FastPath),
	)

	g.mu.Lock()
	g.built = true
	g.lastBuild = time.Now()
	g.report = report
	g.mu.Unlock()
	return report, nil
}

// Search ranks operations for req and records the search in history.
func (g *Gateway) Search(ctx context.Context, req search.Request) ([]search.SearchResult, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.search", trace.WithAttributes(
		attrCategory.String(req.Category),
	))
	defer span.End()

	results, err := g.search.Search(ctx, req)

	attrs := []attribute.KeyValue{attrSuccess.Bool(err == nil)}
	if req.Category != "" {
		attrs = append(attrs, attrCategory.String(strings.ToLower(req.Category)))
	}
	if err != nil {
		attrs = append(attrs, attrKind.String(kindOf(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	g.searches.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attrResults.Int(len(results)))

	if g.history != nil {
		top := ""
		if len(results) > 0 {
			top = results[0].Name
		}
		g.history.Track(history.NewSearchEvent(req.Query, req.Category, len(results), top))
	}
	return results, nil
}

// Execute runs one operation and records the attempt in history.
func (g *Gateway) Execute(ctx context.Context, req execute.Request) execute.Result {
	ctx, span := g.tracer.Start(ctx, "gateway.execute", trace.WithAttributes(
		attrOperation.String(req.Operation),
	))
	defer span.End()

	res := g.exec.Execute(ctx, req)

	attrs := []attribute.KeyValue{
		attrOperation.String(req.Operation),
		attrSuccess.Bool(res.Success),
	}
	kind := ""
	if res.Error != nil {
		kind = string(res.Error.Kind)
		attrs = append(attrs, attrKind.String(kind))
		span.RecordError(res.Error)
		span.SetStatus(codes.Error, res.Error.Message)
	}
	g.executions.Add(ctx, 1, metric.WithAttributes(attrs...))

	if g.history != nil {
		g.history.Track(history.NewExecutionEvent(req.Operation, res.Success, kind, res.Metadata.Elapsed))
	}
	return res
}

// Operations lists the catalog, optionally filtered by category
// (case-insensitive), sorted by name.
func (g *Gateway) Operations(ctx context.Context, category string) ([]catalog.Descriptor, error) {
	descs, err := g.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	out := descs[:0:0]
	for _, d := range descs {
		if category == "" || strings.EqualFold(d.Category, category) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Categories returns the distinct catalog categories, sorted.
func (g *Gateway) Categories(ctx context.Context) ([]string, error) {
	counts, err := g.categoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (g *Gateway) categoryCounts(ctx context.Context) (map[string]int, error) {
	descs, err := g.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	return countCategories(descs), nil
}

func countCategories(descs []catalog.Descriptor) map[string]int {
	counts := make(map[string]int)
	for _, d := range descs {
		if d.Category != "" {
			counts[d.Category]++
		}
	}
	return counts
}

// Documents returns the embeddable documents for the current catalog.
func (g *Gateway) Documents(ctx context.Context) ([]search.Document, error) {
	return g.indexer.Documents(ctx)
}

// SearchOptions returns the effective search options.
func (g *Gateway) SearchOptions() search.Options { return g.search.Options() }

// Close stops history and releases the store, the keyword index and any
// extra closers. It is safe to call more than once.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		if g.history != nil {
			g.history.Stop()
		}
		var errs []error
		if err := g.store.Close(); err != nil {
			errs = append(errs, err)
		}
		if g.keywords != nil {
			if err := g.keywords.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		for _, c := range g.closers {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		g.closeErr = errors.Join(errs...)
	})
	return g.closeErr
}

func (g *Gateway) closeKeywords() {
	if g.keywords != nil {
		_ = g.keywords.Close()
	}
}

func kindOf(err error) string {
	if k := fault.KindOf(err); k != "" {
		return string(k)
	}
	return "Internal"
}
