package search

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// KeywordIndex is an in-memory BM25 index over synthesized documents, used to
// re-rank semantic candidates. It is rebuilt wholesale by the Indexer.
type KeywordIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewKeywordIndex returns an empty index.
func NewKeywordIndex() (*KeywordIndex, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &KeywordIndex{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	docMapping.AddFieldMappingsAt("name", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("text", bleve.NewTextFieldMapping())

	category := bleve.NewKeywordFieldMapping()
	category.IncludeInAll = false
	docMapping.AddFieldMappingsAt("category", category)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Replace swaps the index contents for docs.
func (k *KeywordIndex) Replace(docs []Document) error {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := idx.NewBatch()
	for _, d := range docs {
		doc := map[string]interface{}{
			"name":     d.Metadata[metaName],
			"text":     d.Text,
			"category": d.Metadata[metaCategory],
		}
		if err := batch.Index(d.ID, doc); err != nil {
			idx.Close()
			return fmt.Errorf("failed to index %s: %w", d.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("failed to batch index documents: %w", err)
	}

	k.mu.Lock()
	old := k.index
	k.index = idx
	k.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Search returns BM25 scores keyed by document ID for up to limit hits.
func (k *KeywordIndex) Search(query string, limit int) (map[string]float64, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	res, err := k.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	scores := make(map[string]float64, len(res.Hits))
	for _, hit := range res.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}

// Count returns the number of indexed documents.
func (k *KeywordIndex) Count() (uint64, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	n, err := k.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return n, nil
}

// Close releases the index.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.index != nil {
		return k.index.Close()
	}
	return nil
}
