// Package retrieval implements the hybrid retrieval pipeline: dense
// search and dual BM25 run in parallel, results are fused by RRF,
// optionally reranked, adjusted for freshness and corpus-type boosts,
// and optionally expanded into related services via the service graph.
// Every collaborator is injected, so the pipeline is testable with
// fakes.
package retrieval

import (
	"context"

	"github.com/strataforge/knowgraph/internal/graph"
	"github.com/strataforge/knowgraph/internal/store"
	"github.com/strataforge/knowgraph/internal/types"
)

// Embedder turns a query string into a vector. Satisfied by
// internal/embed.Embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher finds nearest-neighbor chunk IDs for a query vector.
// Satisfied by internal/store.VectorStore.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error)
}

// DualBM25Searcher exposes the two keyword rankings — code-tokenized
// and NLP-tokenized — as separate lists, so fusion can treat each as
// an independent RRF ranker. Satisfied by
// internal/store.CompositeBM25Index.
type DualBM25Searcher interface {
	SearchCode(ctx context.Context, query string, limit int) ([]*store.BM25Result, error)
	SearchNLP(ctx context.Context, query string, limit int) ([]*store.BM25Result, error)
}

var _ DualBM25Searcher = (*store.CompositeBM25Index)(nil)

// Reranker rescoes a candidate set against the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)
}

// RerankCandidate is one fused result offered to the reranker.
type RerankCandidate struct {
	ChunkID string
	Text    string
}

// RerankResult is the reranker's score for one candidate.
type RerankResult struct {
	ChunkID string
	Score   float64
}

// ChunkLookup fetches the full chunk behind a chunk ID. Satisfied by
// internal/index.Indexer.
type ChunkLookup interface {
	Get(id string) (*types.CleanChunk, bool)
}

// GraphExpander reports the dependency neighborhood around a service.
// Satisfied by internal/graph.Graph.
type GraphExpander interface {
	GetNeighborhood(service string, depth int) graph.Neighborhood
}

var _ GraphExpander = (*graph.Graph)(nil)

// QueryRequest is one retrieval request.
type QueryRequest struct {
	Query           string
	TopK            int
	Filters         Filters
	Rerank          bool
	ExpandGraph     bool
	GraphDepth      int
}

// Filters restricts results to a corpus/service/repo subset. An empty
// field imposes no restriction on that dimension.
type Filters struct {
	CorpusTypes []types.CorpusType
	ServiceName string
	RepoName    string
}

// ScoredChunk is one chunk in a QueryResult: the final score after
// every pipeline stage that ran, plus each first-stage ranker's raw
// score and rank (rank 0 = absent from that ranker).
type ScoredChunk struct {
	Chunk *types.CleanChunk
	Score float64

	DenseScore    float64
	BM25CodeScore float64
	BM25NLPScore  float64
	DenseRank     int
	BM25CodeRank  int
	BM25NLPRank   int

	FromDense bool
	FromBM25  bool
	Reranked  bool
}

// StageMetadata records one pipeline stage's latency and hit count, for
// observability; a stage that never ran records no entry.
type StageMetadata struct {
	Name      string
	LatencyMS float64
	Hits      int
}

// QueryResult is the outcome of one Pipeline.Query call.
// ServiceContext is populated only when graph expansion ran: one
// structured neighborhood per distinct service among the top results.
type QueryResult struct {
	Chunks         []ScoredChunk
	ServiceContext []graph.Neighborhood
	Stages         []StageMetadata
}

// RelatedServices flattens ServiceContext into the distinct set of
// neighboring service names, in discovery order.
func (r *QueryResult) RelatedServices() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(names []string) {
		for _, name := range names {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	for _, n := range r.ServiceContext {
		add(n.CalledBy)
		add(n.Calls)
		add(n.ExtendedNeighbors)
	}
	return out
}
