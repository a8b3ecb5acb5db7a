package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ProviderType names an embedding provider.
type ProviderType string

const (
	// ProviderOllama embeds through a local Ollama server (default).
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic embeds with the deterministic hash scheme, for
	// offline or BM25-only use.
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder for the given provider.
//
// Environment overrides:
//   - KNOWGRAPH_EMBEDDER selects the provider ("ollama", "static")
//   - KNOWGRAPH_OLLAMA_HOST / KNOWGRAPH_OLLAMA_MODEL override the
//     Ollama endpoint and model
//   - KNOWGRAPH_EMBED_CACHE=false disables the query-embedding cache
//
// An unavailable backend is an error, never a silent fallback: a
// static-embedded index is not compatible with a model-embedded one,
// so swapping providers behind the user's back would corrupt results.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	if envProvider := os.Getenv("KNOWGRAPH_EMBEDDER"); envProvider != "" {
		provider = ParseProvider(envProvider)
	}

	var embedder Embedder
	var err error
	switch provider {
	case ProviderStatic:
		embedder = NewStaticEmbedder768()
	default:
		embedder, err = newOllama(ctx, model)
	}
	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}
	return embedder, nil
}

// isCacheDisabled checks the cache kill switch.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("KNOWGRAPH_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

func newOllama(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if model != "" && isOllamaModelName(model) {
		cfg.Model = model
	}

	if host := os.Getenv("KNOWGRAPH_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if modelOverride := os.Getenv("KNOWGRAPH_OLLAMA_MODEL"); modelOverride != "" {
		cfg.Model = modelOverride
	}
	if timeoutStr := os.Getenv("KNOWGRAPH_OLLAMA_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.ConnectTimeout = timeout
		}
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or use BM25-only: knowgraph index --backend=static", err)
	}
	return embedder, nil
}

// ParseProvider converts a string to a ProviderType, defaulting to
// Ollama for anything unrecognized.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "static":
		return ProviderStatic
	default:
		return ProviderOllama
	}
}

// String returns the provider name.
func (p ProviderType) String() string {
	return string(p)
}

// isOllamaModelName reports whether model looks like an Ollama model
// reference rather than a GGUF file name: Ollama models carry a ":tag"
// (e.g. "qwen3-embedding:0.6b"), GGUF names carry versions or a .gguf
// extension.
func isOllamaModelName(model string) bool {
	if strings.Contains(model, ":") {
		return true
	}
	if strings.HasSuffix(strings.ToLower(model), ".gguf") {
		return false
	}
	if strings.Contains(model, "-v") && (strings.Contains(model, ".") || strings.HasSuffix(model, "-v1") || strings.HasSuffix(model, "-v2")) {
		return false
	}
	return false
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{
		string(ProviderOllama),
		string(ProviderStatic),
	}
}

// IsValidProvider checks whether s names a known provider.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo describes an embedder instance.
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo inspects an embedder, unwrapping the cache layer if present.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}
	return info
}
