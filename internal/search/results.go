/*
Package search indexes operation descriptors and answers natural-language
queries against them.

The Indexer synthesizes one document per operation, embeds it and upserts it
into a vector store. The Engine embeds a query, over-fetches nearest
neighbours, filters and optionally re-ranks them with BM25 keyword scores, and
returns a bounded, deterministically ordered result list.
*/
package search

import "github.com/khanglvm/toolgate/internal/catalog"

// SearchResult is one ranked operation.
type SearchResult struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Score       float64           `json:"score"`
	Parameters  catalog.Schema    `json:"parameters"`
	Examples    []catalog.Example `json:"examples,omitempty"`
}

// Document is the synthesized, embeddable form of a descriptor.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Skip records a descriptor left out of an index build.
type Skip struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// IndexReport summarizes one BuildIndex call.
type IndexReport struct {
	Indexed int    `json:"indexed"`
	Skipped int    `json:"skipped"`
	Skips   []Skip `json:"skips,omitempty"`

	// FastPath is true when an existing index was reused without re-embedding.
	FastPath bool `json:"fastPath"`
}
