// Package embed provides fixed-dimension text embeddings for semantic
// similarity scoring, plus the process-lifetime vector cache that shares
// them across all pair comparisons in a run.
package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Dim is the embedding dimension produced by the hashing embedder.
const Dim = 256

// Embedder computes a fixed-dimension vector for a canonical text. Embed may
// be called concurrently; implementations must be pure so that redundant
// computation for the same text always resolves to the same vector.
type Embedder interface {
	Embed(ctx context.Context, canonical string) ([]float64, error)
}

// HashingEmbedder is a deterministic local embedder built on signed feature
// hashing: each token and each character trigram is hashed into one of Dim
// buckets with a hash-derived sign, and the result is L2 normalized. It runs
// in-process with no model download and no network, which keeps the semantic
// phase inside the poll cadence.
type HashingEmbedder struct{}

// NewHashingEmbedder creates a HashingEmbedder.
func NewHashingEmbedder() *HashingEmbedder {
	return &HashingEmbedder{}
}

// tokenWeight and trigramWeight balance whole-word evidence against
// subword evidence; trigrams let near-identical phrasings ("democrat" vs
// "democratic") still land close in the vector space.
const (
	tokenWeight   = 1.0
	trigramWeight = 0.5
)

// Embed computes the embedding for the given canonical text. It honors
// context cancellation between feature groups so a cycle timeout is never
// stuck behind a long description.
func (e *HashingEmbedder) Embed(ctx context.Context, canonical string) ([]float64, error) {
	vec := make([]float64, Dim)

	for _, tok := range strings.Fields(canonical) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		addFeature(vec, tok, tokenWeight)
		for _, tri := range trigrams(tok) {
			addFeature(vec, tri, trigramWeight)
		}
	}

	normalize(vec)
	return vec, nil
}

// addFeature hashes the feature into a bucket with a sign bit and adds its
// weight. Signed hashing keeps the expected dot product of unrelated texts
// near zero.
func addFeature(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % Dim)
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// trigrams returns the character trigrams of a token padded with boundary
// markers, so prefixes and suffixes hash distinctly from interior runs.
func trigrams(token string) []string {
	padded := "^" + token + "$"
	if len(padded) < 3 {
		return nil
	}
	out := make([]string, 0, len(padded)-2)
	for i := 0; i+3 <= len(padded); i++ {
		out = append(out, padded[i:i+3])
	}
	return out
}

func normalize(vec []float64) {
	var sumSq float64
	for _, v := range vec {
		sumSq += v * v
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range vec {
		vec[i] /= norm
	}
}

// Cosine returns the cosine similarity of two vectors of equal dimension,
// clamped to [0,1]; negative similarities carry no more meaning than zero for
// match grading.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
