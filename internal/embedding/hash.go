package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// DefaultHashDimensions is the vector length of NewHashEmbedder.
const DefaultHashDimensions = 1024

const bigramWeight = 0.5

// stopwords carry no meaning for operation lookup.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true, "to": true,
	"in": true, "on": true, "for": true, "by": true, "with": true, "is": true,
	"are": true, "be": true, "it": true, "its": true, "this": true, "that": true,
	"from": true, "as": true, "at": true, "or": true, "i": true, "me": true,
	"my": true, "please": true, "what": true, "how": true, "do": true,
	"can": true, "you": true, "need": true, "want": true,
}

// HashEmbedder is a deterministic bag-of-words embedder. Tokens and adjacent
// token pairs are hashed into signed buckets and the result is L2-normalized,
// so texts sharing vocabulary have high cosine similarity.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a HashEmbedder producing dims-length vectors.
// dims <= 0 selects DefaultHashDimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed hashes text into a unit vector. Text with no usable tokens yields the zero vector.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.dims)
	tokens := h.Tokenize(text)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, bigramWeight)
		}
	}
	return Normalize(vec), nil
}

// Dimensions returns the vector length.
func (h *HashEmbedder) Dimensions() int { return h.dims }

// Model names the embedder and its dimensionality.
func (h *HashEmbedder) Model() string { return fmt.Sprintf("hash-fnv1a-%d", h.dims) }

// Tokenize normalizes text and splits it into content tokens.
// Case is folded, punctuation and underscores split words, stopwords are dropped
// and a trailing plural "s" is removed from longer words.
func (h *HashEmbedder) Tokenize(text string) []string {
	folded := cases.Fold().String(norm.NFKC.String(text))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

func stem(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}

func (h *HashEmbedder) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := sum % uint64(h.dims)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
