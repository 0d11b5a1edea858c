package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/khanglvm/toolgate/internal/catalog"
	"github.com/khanglvm/toolgate/internal/embedding"
	"github.com/khanglvm/toolgate/internal/fault"
	"github.com/khanglvm/toolgate/internal/log"
	"github.com/khanglvm/toolgate/internal/vectorstore"
)

// DefaultIndexParallelism bounds concurrent embedding calls during a build.
const DefaultIndexParallelism = 4

// Indexer builds the vector index from a Registry.
//
// Builds and searches share a gate: a build holds it exclusively, so a
// search never observes a half-built index.
type Indexer struct {
	registry catalog.Registry
	embedder embedding.Embedder
	store    vectorstore.Store
	keywords *KeywordIndex
	policy   SynthesisPolicy
	workers  int
	log      log.Logger

	gate sync.RWMutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithParallelism sets the number of concurrent embedding workers.
func WithParallelism(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithSynthesis overrides DefaultSynthesis.
func WithSynthesis(p SynthesisPolicy) IndexerOption {
	return func(ix *Indexer) { ix.policy = p }
}

// WithKeywordIndex attaches a BM25 index that is refreshed on every build.
func WithKeywordIndex(k *KeywordIndex) IndexerOption {
	return func(ix *Indexer) { ix.keywords = k }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) IndexerOption {
	return func(ix *Indexer) { ix.log = l }
}

// NewIndexer returns an Indexer over the given collaborators.
func NewIndexer(reg catalog.Registry, emb embedding.Embedder, store vectorstore.Store, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		registry: reg,
		embedder: emb,
		store:    store,
		policy:   DefaultSynthesis,
		workers:  DefaultIndexParallelism,
		log:      log.Default,
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.log = log.OrDefault(ix.log)
	return ix
}

// BuildIndex embeds every descriptor and upserts it into the store.
//
// When force is false and the store already holds exactly these documents
// embedded by this embedder, embedding is skipped and only the keyword index
// is refreshed. Otherwise a non-empty store is reset first, so vectors from
// another model or catalog never linger. Descriptors that are malformed or fail to embed or upsert are
// skipped and reported; they never abort the build. Duplicate operation names
// do abort it, before the store is touched.
func (ix *Indexer) BuildIndex(ctx context.Context, force bool) (IndexReport, error) {
	ix.gate.Lock()
	defer ix.gate.Unlock()

	start := time.Now()

	descs, err := ix.registry.List(ctx)
	if err != nil {
		return IndexReport{}, fmt.Errorf("failed to list operations: %w", err)
	}
	if dups := catalog.DuplicateNames(descs); len(dups) > 0 {
		return IndexReport{}, fmt.Errorf("%w: %v", catalog.ErrDuplicateOperation, dups)
	}

	count, err := ix.store.Count(ctx)
	if err != nil {
		return IndexReport{}, fault.Wrap(fault.SearchUnavailable, err, "failed to count indexed operations")
	}

	var report IndexReport
	docs := make([]Document, 0, len(descs))
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			report.skip(d.Name, err.Error())
			continue
		}
		doc, err := ix.policy.Document(d)
		if err != nil {
			report.skip(d.Name, fmt.Sprintf("failed to encode metadata: %v", err))
			continue
		}
		docs = append(docs, doc)
	}

	fp := ix.fingerprint(docs)
	stored, err := ix.store.Fingerprint(ctx)
	if err != nil {
		return IndexReport{}, fault.Wrap(fault.SearchUnavailable, err, "failed to read index fingerprint")
	}

	if !force && count > 0 {
		if count == len(docs) && stored == fp {
			report.FastPath = true
			report.Indexed = count
			ix.refreshKeywords(docs)
			ix.log.Infof("index already holds %d operations, skipping embedding", count)
			return report, nil
		}
		ix.log.Infof("index is stale (%d entries, fingerprint %q, want %q), re-embedding", count, stored, fp)
	}

	if count > 0 {
		if err := ix.store.Reset(ctx); err != nil {
			return IndexReport{}, fault.Wrap(fault.SearchUnavailable, err, "failed to reset index")
		}
	}

	indexed, err := ix.embedAll(ctx, docs, &report)
	if err != nil {
		return IndexReport{}, err
	}
	report.Indexed = len(indexed)
	ix.refreshKeywords(indexed)

	if err := ix.store.SetFingerprint(ctx, fp); err != nil {
		return IndexReport{}, fault.Wrap(fault.SearchUnavailable, err, "failed to record index fingerprint")
	}

	for _, s := range report.Skips {
		ix.log.Warnf("skipped %s: %s", s.Name, s.Reason)
	}
	ix.log.Infof("indexed %d operations (%d skipped) in %s", report.Indexed, report.Skipped, time.Since(start).Round(time.Millisecond))
	return report, nil
}

type embedOutcome struct {
	vector   []float32
	err      error
	upserted bool
}

// embedAll embeds docs on a worker pool. Upserts run inside the workers when
// the store allows concurrent writes, otherwise serially afterwards. Returns
// the documents that made it into the store, in input order.
func (ix *Indexer) embedAll(ctx context.Context, docs []Document, report *IndexReport) ([]Document, error) {
	pool, err := ants.NewPool(ix.workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding worker pool: %w", err)
	}
	defer pool.Release()

	concurrent := ix.store.ConcurrentWrites()
	outcomes := make([]embedOutcome, len(docs))

	var wg sync.WaitGroup
	for i := range docs {
		wg.Add(1)
		i := i
		task := func() {
			defer wg.Done()
			vec, err := ix.embedder.Embed(ctx, docs[i].Text)
			if err != nil {
				outcomes[i].err = fmt.Errorf("embed: %w", err)
				return
			}
			outcomes[i].vector = vec
			if concurrent {
				if err := ix.store.Upsert(ctx, docs[i].ID, vec, docs[i].Metadata); err != nil {
					outcomes[i].err = fmt.Errorf("upsert: %w", err)
					return
				}
				outcomes[i].upserted = true
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			outcomes[i].err = fmt.Errorf("submit embedding task: %w", err)
		}
	}
	wg.Wait()

	indexed := make([]Document, 0, len(docs))
	for i, doc := range docs {
		out := &outcomes[i]
		if out.err == nil && !out.upserted {
			if err := ix.store.Upsert(ctx, doc.ID, out.vector, doc.Metadata); err != nil {
				out.err = fmt.Errorf("upsert: %w", err)
			}
		}
		if out.err != nil {
			report.skip(doc.ID, out.err.Error())
			continue
		}
		indexed = append(indexed, doc)
	}
	return indexed, nil
}

// fingerprint identifies the embedder and the documents it embedded.
func (ix *Indexer) fingerprint(docs []Document) string {
	h := sha256.New()
	for _, d := range docs {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write([]byte(d.Text))
		h.Write([]byte{0})
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return fmt.Sprintf("%s/%d/%s", ix.embedder.Model(), ix.embedder.Dimensions(), sum[:16])
}

func (ix *Indexer) refreshKeywords(docs []Document) {
	if ix.keywords == nil {
		return
	}
	if err := ix.keywords.Replace(docs); err != nil {
		ix.log.Warnf("keyword index refresh failed: %v", err)
	}
}

// Documents returns the synthesized documents for the current registry
// contents, for export. Malformed descriptors are omitted.
func (ix *Indexer) Documents(ctx context.Context) ([]Document, error) {
	descs, err := ix.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	docs := make([]Document, 0, len(descs))
	for _, d := range descs {
		if d.Validate() != nil {
			continue
		}
		doc, err := ix.policy.Document(d)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Count returns the number of indexed operations.
func (ix *Indexer) Count(ctx context.Context) (int, error) {
	ix.gate.RLock()
	defer ix.gate.RUnlock()
	return ix.store.Count(ctx)
}

// SkipError converts a Skip into an IndexingFailure error.
func (s Skip) SkipError() *fault.Error {
	return fault.New(fault.IndexingFailure, "%s: %s", s.Name, s.Reason)
}

func (r *IndexReport) skip(name, reason string) {
	if name == "" {
		name = "<unnamed>"
	}
	r.Skips = append(r.Skips, Skip{Name: name, Reason: reason})
	r.Skipped++
}
