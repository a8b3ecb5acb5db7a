package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, dims int) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func unitVector(dims, hot int) []float32 {
	v := make([]float32, dims)
	v[hot%dims] = 1
	return v
}

func TestHNSWStoreAddAndSearch(t *testing.T) {
	s := newTestStore(t, 4)

	ids := []string{"c1", "c2", "c3"}
	vecs := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	require.NoError(t, s.Add(context.Background(), ids, vecs))

	results, err := s.Search(context.Background(), []float32{1, 0.1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ID)
	assert.Greater(t, results[0].Score, results[len(results)-1].Score-1e-6)
}

func TestHNSWStoreDimensionMismatch(t *testing.T) {
	s := newTestStore(t, 8)

	err := s.Add(context.Background(), []string{"bad"}, [][]float32{{1, 2, 3}})
	require.Error(t, err)
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 8, dimErr.Expected)
	assert.Equal(t, 3, dimErr.Got)

	_, err = s.Search(context.Background(), []float32{1, 2}, 1)
	require.ErrorAs(t, err, &dimErr)
}

func TestHNSWStoreIdempotentReAdd(t *testing.T) {
	s := newTestStore(t, 4)

	vec := [][]float32{unitVector(4, 0)}
	require.NoError(t, s.Add(context.Background(), []string{"same"}, vec))
	require.NoError(t, s.Add(context.Background(), []string{"same"}, vec))
	require.NoError(t, s.Add(context.Background(), []string{"same"}, vec))

	assert.Equal(t, 1, s.Count())
	assert.True(t, s.Contains("same"))

	results, err := s.Search(context.Background(), unitVector(4, 0), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "same", results[0].ID)
}

func TestHNSWStoreReAddReplacesVector(t *testing.T) {
	s := newTestStore(t, 4)

	require.NoError(t, s.Add(context.Background(), []string{"c"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, s.Add(context.Background(), []string{"c"}, [][]float32{{0, 0, 0, 1}}))

	results, err := s.Search(context.Background(), []float32{0, 0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-4)
}

func TestHNSWStoreDeleteExcludesFromSearch(t *testing.T) {
	s := newTestStore(t, 4)

	require.NoError(t, s.Add(context.Background(),
		[]string{"keep", "drop"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, s.Delete(context.Background(), []string{"drop", "missing"}))

	assert.Equal(t, 1, s.Count())
	assert.False(t, s.Contains("drop"))

	results, err := s.Search(context.Background(), []float32{0, 1, 0, 0}, 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "drop", r.ID)
	}
}

func TestHNSWStoreLazyDeleteLeavesOrphans(t *testing.T) {
	s := newTestStore(t, 4)

	require.NoError(t, s.Add(context.Background(),
		[]string{"a", "b"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, s.Delete(context.Background(), []string{"b"}))

	stats := s.Stats()
	assert.Equal(t, 1, stats.ValidIDs)
	assert.Equal(t, 2, stats.GraphNodes)
	assert.Equal(t, 1, stats.Orphans)
}

func TestHNSWStoreEmptySearch(t *testing.T) {
	s := newTestStore(t, 4)

	results, err := s.Search(context.Background(), unitVector(4, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStoreAllIDs(t *testing.T) {
	s := newTestStore(t, 4)

	require.NoError(t, s.Add(context.Background(),
		[]string{"x", "y", "z"},
		[][]float32{unitVector(4, 0), unitVector(4, 1), unitVector(4, 2)}))

	assert.ElementsMatch(t, []string{"x", "y", "z"}, s.AllIDs())
}

func TestHNSWStoreSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	s := newTestStore(t, 4)
	require.NoError(t, s.Add(context.Background(),
		[]string{"c1", "c2"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, s.Save(path))

	loaded, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	results, err := loaded.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
}

func TestHNSWStoreClosedOperationsFail(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.Add(context.Background(), []string{"x"}, [][]float32{unitVector(4, 0)}))
	_, err = s.Search(context.Background(), unitVector(4, 0), 1)
	assert.Error(t, err)
	assert.Error(t, s.Delete(context.Background(), []string{"x"}))
	assert.Nil(t, s.AllIDs())
	assert.Equal(t, 0, s.Count())
	assert.False(t, s.Contains("x"))
	assert.NoError(t, s.Close())
}

func TestReadHNSWStoreDimensions(t *testing.T) {
	dim, err := ReadHNSWStoreDimensions(filepath.Join(t.TempDir(), "never-written.hnsw"))
	require.NoError(t, err)
	assert.Equal(t, 0, dim)

	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	s := newTestStore(t, 16)
	require.NoError(t, s.Add(context.Background(), []string{"a"}, [][]float32{unitVector(16, 0)}))
	require.NoError(t, s.Save(path))

	dim, err = ReadHNSWStoreDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 16, dim)
}

func TestNormalizeVectorInPlace(t *testing.T) {
	v := []float32{3, 4}
	normalizeVectorInPlace(v)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)

	// The zero vector stays untouched rather than dividing by zero.
	zero := []float32{0, 0, 0}
	normalizeVectorInPlace(zero)
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestDistanceToScore(t *testing.T) {
	assert.InDelta(t, 1.0, float64(distanceToScore(0, "cos")), 1e-6)
	assert.InDelta(t, 0.5, float64(distanceToScore(1, "cos")), 1e-6)
	assert.InDelta(t, 0.0, float64(distanceToScore(2, "cos")), 1e-6)

	assert.InDelta(t, 1.0, float64(distanceToScore(0, "l2")), 1e-6)
	assert.InDelta(t, 0.5, float64(distanceToScore(1, "l2")), 1e-6)

	// Unknown metrics fall back to the cosine mapping.
	assert.InDelta(t, 0.75, float64(distanceToScore(0.5, "weird")), 1e-6)
}
