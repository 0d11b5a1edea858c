/*
Package embedding turns text into fixed-length vectors.

Two embedders are provided: HashEmbedder, a deterministic feature-hashing
embedder that needs no network, and OpenAIEmbedder, backed by the OpenAI
embeddings API. CachedEmbedder memoizes either one.
*/
package embedding

import (
	"context"
	"math"
)

// Embedder maps text to a vector of a fixed dimensionality.
// Identical input yields identical output for the lifetime of the embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector length.
	Dimensions() int

	// Model identifies the embedding model; vectors from different models
	// must not be compared.
	Model() string
}

// Normalize scales v to unit length in place. A zero vector is left as is.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
