package embed

import "time"

// Ollama API constants.
const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model for mixed
	// code+docs corpora.
	DefaultOllamaModel = "qwen3-embedding:0.6b"

	// OllamaConnectTimeout is the default OllamaConfig.ConnectTimeout.
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize sizes the HTTP connection pool.
	OllamaPoolSize = 4
)

// FallbackOllamaModels are tried in order when the configured model is
// not installed. Only embedding models that handle code acceptably are
// listed; general text models rank code chunks poorly.
var FallbackOllamaModels = []string{
	"embeddinggemma",
	"mxbai-embed-large",
}

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string

	// Model is the embedding model to use.
	Model string

	// FallbackModels are tried in order if the primary is unavailable.
	FallbackModels []string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	// BatchSize for batch embedding requests.
	BatchSize int

	// ConnectTimeout is kept in the configuration but the client does
	// not apply it: the health check runs under DefaultColdTimeout and
	// each embed request under its warm or cold deadline.
	ConnectTimeout time.Duration

	// MaxRetries for transient failures.
	MaxRetries int

	// PoolSize for the HTTP connection pool.
	PoolSize int

	// SkipHealthCheck skips the initial availability probe (tests).
	SkipHealthCheck bool

	// ProgressFunc is called after each batch with (completed, total).
	ProgressFunc func(completed, total int)
}

// DefaultOllamaConfig returns the default client configuration.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultOllamaModel,
		FallbackModels: FallbackOllamaModels,
		Dimensions:     0, // auto-detect
		BatchSize:      DefaultBatchSize,
		ConnectTimeout: OllamaConnectTimeout,
		MaxRetries:     DefaultMaxRetries,
		PoolSize:       OllamaPoolSize,
	}
}

// OllamaEmbedRequest is the /api/embed request body.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string, or []string for batch
}

// OllamaEmbedResponse is the /api/embed response body.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelListResponse is the /api/tags response body.
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo describes an installed model.
type OllamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
