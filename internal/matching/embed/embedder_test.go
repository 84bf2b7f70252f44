package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDeterministic(t *testing.T) {
	e := NewHashingEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "will democrats win the senate")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "will democrats win the senate")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, Dim)
}

func TestEmbedUnitNorm(t *testing.T) {
	e := NewHashingEmbedder()

	vec, err := e.Embed(context.Background(), "chiefs win the super bowl")
	require.NoError(t, err)

	var sumSq float64
	for _, v := range vec {
		sumSq += v * v
	}
	assert.InDelta(t, 1.0, sumSq, 1e-9)
}

func TestEmbedSimilarityOrdering(t *testing.T) {
	e := NewHashingEmbedder()
	ctx := context.Background()

	base, err := e.Embed(ctx, "will democrats win the senate majority")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "democrats win senate majority")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "bitcoin trades over 100k in december")
	require.NoError(t, err)

	simClose := Cosine(base, near)
	simFar := Cosine(base, far)
	assert.Greater(t, simClose, simFar, "shared tokens must score above unrelated text")
	assert.InDelta(t, 1.0, Cosine(base, base), 1e-9)
}

func TestEmbedRespectsCancellation(t *testing.T) {
	e := NewHashingEmbedder()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, "will democrats win the senate")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCosineEdgeCases(t *testing.T) {
	assert.Zero(t, Cosine(nil, nil))
	assert.Zero(t, Cosine([]float64{1, 0}, []float64{1}))
	assert.Zero(t, Cosine([]float64{0, 0}, []float64{1, 0}))
	// Opposed vectors clamp to zero rather than going negative.
	assert.Zero(t, Cosine([]float64{1, 0}, []float64{-1, 0}))
	assert.InDelta(t, 1.0, Cosine([]float64{3, 4}, []float64{3, 4}), 1e-9)
}

func TestVectorCache(t *testing.T) {
	c := NewVectorCache()

	_, ok := c.Get(42)
	assert.False(t, ok)

	vec := []float64{0.6, 0.8}
	c.Put(42, vec)

	got, ok := c.Get(42)
	require.True(t, ok)
	assert.Equal(t, vec, got)
	assert.Equal(t, 1, c.Len())
}
