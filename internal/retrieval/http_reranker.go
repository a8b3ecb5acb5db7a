package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Cross-encoder reranker defaults. The reranker model itself is an
// external collaborator (score(query, text) -> float); HTTPReranker is
// the concrete binding to any server exposing a /rerank endpoint.
const (
	DefaultRerankerEndpoint = "http://localhost:9659"
	DefaultRerankerModel    = "reranker-small"
	DefaultRerankerTimeout  = 30 * time.Second
)

// HTTPRerankerConfig configures an HTTPReranker.
type HTTPRerankerConfig struct {
	Endpoint        string
	Model           string
	Timeout         time.Duration
	SkipHealthCheck bool
}

// DefaultHTTPRerankerConfig returns the default reranker configuration.
func DefaultHTTPRerankerConfig() HTTPRerankerConfig {
	return HTTPRerankerConfig{
		Endpoint: DefaultRerankerEndpoint,
		Model:    DefaultRerankerModel,
		Timeout:  DefaultRerankerTimeout,
	}
}

// HTTPReranker implements Reranker against an HTTP cross-encoder
// server.
type HTTPReranker struct {
	client   *http.Client
	config   HTTPRerankerConfig
	mu       sync.RWMutex
	closed   bool
	endpoint string
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker dials a cross-encoder server and health-checks it
// unless SkipHealthCheck is set (used by tests with a fixture server).
func NewHTTPReranker(ctx context.Context, cfg HTTPRerankerConfig) (*HTTPReranker, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRerankerEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankerModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRerankerTimeout
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	r := &HTTPReranker{client: client, config: cfg, endpoint: cfg.Endpoint}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("reranker health check failed: %w", err)
		}
	}

	slog.Debug("reranker_created",
		slog.String("endpoint", cfg.Endpoint), slog.String("model", cfg.Model))
	return r, nil
}

func (r *HTTPReranker) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("building health check request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to reranker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reranker unhealthy (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Rerank scores every candidate against the query via the
// cross-encoder endpoint.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("reranker is closed")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Text
	}

	jsonData, err := json.Marshal(rerankRequest{Query: query, Documents: docs, Model: r.config.Model})
	if err != nil {
		return nil, fmt.Errorf("marshaling rerank request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("building rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding rerank response: %w", err)
	}

	out := make([]RerankResult, 0, len(result.Results))
	for _, rr := range result.Results {
		if rr.Index < 0 || rr.Index >= len(candidates) {
			continue
		}
		out = append(out, RerankResult{ChunkID: candidates[rr.Index].ChunkID, Score: rr.Score})
	}
	return out, nil
}

// Available reports whether the reranker endpoint is reachable.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.healthCheck(checkCtx) == nil
}

// Close releases the reranker's HTTP connections.
func (r *HTTPReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if transport, ok := r.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
