// Package embed provides the embedding backends behind dense
// retrieval: an Ollama HTTP client for real models, a deterministic
// hash-based static embedder for offline use, and an LRU cache wrapper
// for query embeddings. The rest of the system treats all of them as
// the same black-box Embedder.
package embed

import (
	"context"
	"math"
	"time"
)

// Batch and timeout defaults shared by the backends.
const (
	// MinBatchSize is the minimum allowed batch size.
	MinBatchSize = 1

	// MaxBatchSize caps batch size to bound request memory.
	MaxBatchSize = 256

	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// DefaultWarmTimeout applies when the model answered recently and is
	// resident in memory.
	DefaultWarmTimeout = 120 * time.Second

	// DefaultColdTimeout applies on the first request, when the backend
	// may still need to load the model.
	DefaultColdTimeout = 180 * time.Second

	// ModelUnloadThreshold is how long after the last call a model is
	// assumed unloaded (Ollama evicts after ~5 minutes idle).
	ModelUnloadThreshold = 5 * time.Minute

	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3
)

// Embedding dimensions per backend.
const (
	// DefaultDimensions is the dimension most supported embedding
	// models emit, and the dimension new indexes default to.
	DefaultDimensions = 768

	// StaticDimensions is the dimension of the compact static embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length; the zero vector passes
// through unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
