package embed

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps StaticEmbedder and counts backend calls.
type countingEmbedder struct {
	*StaticEmbedder
	mu         sync.Mutex
	embeds     int
	batchCalls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.embeds++
	c.mu.Unlock()
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.batchCalls++
	c.mu.Unlock()
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedderAvoidsRecompute(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedderWithDefaults(inner)
	defer func() { _ = cached.Close() }()

	first, err := cached.Embed(context.Background(), "what calls the billing service")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "what calls the billing service")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.embeds)
}

func TestCachedEmbedderBatchReusesCachedEntries(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedderWithDefaults(inner)
	defer func() { _ = cached.Close() }()

	_, err := cached.Embed(context.Background(), "alpha")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	// Only "beta" should have reached the backend batch call.
	assert.Equal(t, 1, inner.batchCalls)

	// Everything cached now: no further backend calls.
	_, err = cached.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.batchCalls)
}

func TestCachedEmbedderPassthroughMetadata(t *testing.T) {
	inner := NewStaticEmbedder()
	cached := NewCachedEmbedder(inner, 10)
	defer func() { _ = cached.Close() }()

	assert.Equal(t, inner.Dimensions(), cached.Dimensions())
	assert.Equal(t, inner.ModelName(), cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, Embedder(inner), cached.Inner())
}

func TestCachedEmbedderDefaultSizeOnBadInput(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(), -5)
	defer func() { _ = cached.Close() }()

	_, err := cached.Embed(context.Background(), "still works")
	assert.NoError(t, err)
}
