/*
Package vectorstore stores operation vectors and answers nearest-neighbour queries.

Scores are cosine similarity clamped to [0, 1]. Query results are ordered by
descending score, ties broken by ascending ID, so identical stores answer
identically.
*/
package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned by Query when stored vectors and the query
// vector differ in length.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Match is one query hit.
type Match struct {
	ID       string
	Metadata map[string]string
	Score    float64
}

// Store persists vectors keyed by ID.
type Store interface {
	// Upsert inserts or replaces the vector and metadata for id.
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error

	// Query returns up to k entries most similar to vector. It fails with
	// ErrDimensionMismatch if any stored vector has a different length.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Reset removes every entry and the fingerprint.
	Reset(ctx context.Context) error

	// Fingerprint returns the value last given to SetFingerprint, or "".
	// The indexer records the embedder that produced the vectors here.
	Fingerprint(ctx context.Context) (string, error)

	SetFingerprint(ctx context.Context, fp string) error

	// ConcurrentWrites reports whether Upsert may be called from several
	// goroutines at once.
	ConcurrentWrites() bool

	Close() error
}

// Cosine returns the cosine similarity of a and b, or 0 when lengths differ
// or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Score maps cosine similarity onto [0, 1]. Anti-correlated vectors score 0.
func Score(a, b []float32) float64 {
	s := Cosine(a, b)
	switch {
	case s < 0 || math.IsNaN(s):
		return 0
	case s > 1:
		return 1
	}
	return s
}

// rank sorts matches by score then ID and keeps the first k.
func rank(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func copyMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
