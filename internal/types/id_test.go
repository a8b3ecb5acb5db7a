package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("file.go", 10, 100)
	b := ChunkID("file.go", 10, 100)
	assert.Equal(t, a, b, "identical provenance must yield identical ids")
}

func TestChunkID_DiffersByRange(t *testing.T) {
	a := ChunkID("file.go", 10, 100)
	b := ChunkID("file.go", 10, 101)
	assert.NotEqual(t, a, b)
}

func TestChunkID_DiffersBySourceURI(t *testing.T) {
	a := ChunkID("file.go", 10, 100)
	b := ChunkID("other.go", 10, 100)
	assert.NotEqual(t, a, b)
}

func TestChunkID_Is16HexChars(t *testing.T) {
	id := ChunkID("file.go", 0, 10)
	assert.Len(t, id, 16)
	for _, r := range id {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'), "expected lowercase hex, got %q", r)
	}
}
