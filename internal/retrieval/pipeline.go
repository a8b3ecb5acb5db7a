package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	kgerrors "github.com/strataforge/knowgraph/internal/errors"
	"github.com/strataforge/knowgraph/internal/graph"
	"github.com/strataforge/knowgraph/internal/store"
	"github.com/strataforge/knowgraph/internal/types"
)

// fanOutMultiplier widens each first-stage search beyond TopK so RRF
// fusion and downstream filtering have enough candidates to work with.
const fanOutMultiplier = 3

// rerankCandidateCap bounds how many fused results are offered to the
// reranker, since cross-encoder rerank cost grows with candidate count.
const rerankCandidateCap = 50

// Pipeline orchestrates the full hybrid retrieval flow.
type Pipeline struct {
	embedder Embedder
	vector   VectorSearcher
	bm25     DualBM25Searcher
	lookup   ChunkLookup
	reranker Reranker // optional
	expander GraphExpander // optional

	// rerankBreaker trips when the reranker backend keeps failing, so
	// queries degrade to fused scores instead of stalling on it.
	rerankBreaker *kgerrors.CircuitBreaker

	rrfK             int
	freshnessHalfLife float64
	freshnessWeight   float64
	boosts            []Boost
	now               func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReranker sets an optional cross-encoder reranker.
func WithReranker(r Reranker) Option {
	return func(p *Pipeline) { p.reranker = r }
}

// WithGraphExpander sets an optional service-graph neighborhood
// expander.
func WithGraphExpander(g GraphExpander) Option {
	return func(p *Pipeline) { p.expander = g }
}

// WithBoosts overrides DefaultBoosts.
func WithBoosts(boosts []Boost) Option {
	return func(p *Pipeline) { p.boosts = boosts }
}

// WithFreshnessParams overrides the default half-life/weight.
func WithFreshnessParams(halfLifeDays, weight float64) Option {
	return func(p *Pipeline) { p.freshnessHalfLife, p.freshnessWeight = halfLifeDays, weight }
}

// WithClock overrides time.Now, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a Pipeline. embedder/vector/bm25/lookup are required;
// reranker and graph expansion are optional per-query features.
func New(embedder Embedder, vector VectorSearcher, bm25 DualBM25Searcher, lookup ChunkLookup, opts ...Option) *Pipeline {
	p := &Pipeline{
		embedder:          embedder,
		vector:            vector,
		bm25:              bm25,
		lookup:            lookup,
		rrfK:              DefaultRRFConstant,
		freshnessHalfLife: DefaultFreshnessHalfLifeDays,
		freshnessWeight:   DefaultFreshnessWeight,
		now:               time.Now,
		rerankBreaker:     kgerrors.NewCircuitBreaker("reranker"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Query runs the full pipeline: dense + BM25 fan-out, RRF fusion, filter
// re-application, optional rerank, freshness decay, corpus-type boosts,
// and optional graph expansion.
func (p *Pipeline) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.TopK <= 0 {
		req.TopK = 10
	}
	fanOut := req.TopK * fanOutMultiplier

	var stages []StageMetadata

	dense, bm25Code, bm25NLP, err := p.search(ctx, req.Query, fanOut, &stages)
	if err != nil {
		return nil, err
	}

	fuseStart := time.Now()
	fused := Fuse(dense, bm25Code, bm25NLP, p.rrfK)
	stages = append(stages, StageMetadata{Name: "fuse", LatencyMS: elapsedMS(fuseStart), Hits: len(fused)})

	filterStart := time.Now()
	scored := p.toScoredChunks(fused, req.Filters)
	stages = append(stages, StageMetadata{Name: "filter", LatencyMS: elapsedMS(filterStart), Hits: len(scored)})

	if req.Rerank && p.reranker != nil {
		rerankStart := time.Now()
		reranked, rerankErr := kgerrors.CircuitExecute(p.rerankBreaker, func() ([]ScoredChunk, error) {
			return p.rerank(ctx, req.Query, scored)
		})
		if rerankErr == nil {
			scored = reranked
			stages = append(stages, StageMetadata{Name: "rerank", LatencyMS: elapsedMS(rerankStart), Hits: len(scored)})
		} else {
			// Degrade to fused scores; the breaker keeps a dead
			// reranker from stalling every query.
			stages = append(stages, StageMetadata{Name: "rerank_skipped", LatencyMS: elapsedMS(rerankStart), Hits: 0})
		}
	}

	freshnessStart := time.Now()
	ApplyFreshness(scored, p.now(), p.freshnessHalfLife, p.freshnessWeight)
	stages = append(stages, StageMetadata{Name: "freshness", LatencyMS: elapsedMS(freshnessStart), Hits: len(scored)})

	boostStart := time.Now()
	ApplyBoosts(scored, req.Query, p.boosts)
	stages = append(stages, StageMetadata{Name: "boost", LatencyMS: elapsedMS(boostStart), Hits: len(scored)})

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > req.TopK {
		scored = scored[:req.TopK]
	}

	result := &QueryResult{Chunks: scored, Stages: stages}

	if req.ExpandGraph && p.expander != nil {
		expandStart := time.Now()
		result.ServiceContext = p.expandServices(scored, req.GraphDepth)
		stages = append(stages, StageMetadata{Name: "graph_expand", LatencyMS: elapsedMS(expandStart), Hits: len(result.ServiceContext)})
		result.Stages = stages
	}

	return result, nil
}

// search runs the dense search and both BM25 rankings concurrently;
// one ranker failing does not abort the others.
func (p *Pipeline) search(ctx context.Context, query string, fanOut int, stages *[]StageMetadata) ([]*store.VectorResult, []*store.BM25Result, []*store.BM25Result, error) {
	var dense []*store.VectorResult
	var bm25Code, bm25NLP []*store.BM25Result
	var denseErr, codeErr, nlpErr error
	var denseMS, codeMS, nlpMS float64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		embedding, err := p.embedder.Embed(gctx, query)
		if err != nil {
			denseErr = err
			return nil
		}
		dense, denseErr = p.vector.Search(gctx, embedding, fanOut)
		denseMS = elapsedMS(start)
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		bm25Code, codeErr = p.bm25.SearchCode(gctx, query, fanOut)
		codeMS = elapsedMS(start)
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		bm25NLP, nlpErr = p.bm25.SearchNLP(gctx, query, fanOut)
		nlpMS = elapsedMS(start)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	if denseErr != nil && codeErr != nil && nlpErr != nil {
		return nil, nil, nil, fmt.Errorf("dense search: %v; bm25 code search: %v; bm25 nlp search: %v", denseErr, codeErr, nlpErr)
	}

	*stages = append(*stages,
		StageMetadata{Name: "dense_search", LatencyMS: denseMS, Hits: len(dense)},
		StageMetadata{Name: "bm25_code_search", LatencyMS: codeMS, Hits: len(bm25Code)},
		StageMetadata{Name: "bm25_nlp_search", LatencyMS: nlpMS, Hits: len(bm25NLP)},
	)
	return dense, bm25Code, bm25NLP, nil
}

// toScoredChunks resolves each fused ID to its full chunk via the
// lookup and applies filters. A filter mismatch is not an error, it
// just yields fewer (possibly zero) results.
func (p *Pipeline) toScoredChunks(fused []FusedResult, filters Filters) []ScoredChunk {
	out := make([]ScoredChunk, 0, len(fused))
	for _, f := range fused {
		chunk, ok := p.lookup.Get(f.ChunkID)
		if !ok {
			continue
		}
		if !matchesFilters(chunk, filters) {
			continue
		}
		out = append(out, ScoredChunk{
			Chunk:         chunk,
			Score:         f.RRFScore,
			DenseScore:    f.DenseScore,
			BM25CodeScore: f.BM25CodeScore,
			BM25NLPScore:  f.BM25NLPScore,
			DenseRank:     f.DenseRank,
			BM25CodeRank:  f.BM25CodeRank,
			BM25NLPRank:   f.BM25NLPRank,
			FromDense:     true,
			FromBM25:      f.BM25CodeRank > 0 || f.BM25NLPRank > 0,
		})
	}
	return out
}

func matchesFilters(chunk *types.CleanChunk, filters Filters) bool {
	if len(filters.CorpusTypes) > 0 {
		found := false
		for _, ct := range filters.CorpusTypes {
			if chunk.SourceType.CorpusType == ct {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filters.ServiceName != "" && chunk.Metadata.ServiceName != filters.ServiceName {
		return false
	}
	if filters.RepoName != "" && chunk.Metadata.RepoName != filters.RepoName {
		return false
	}
	return true
}

func (p *Pipeline) rerank(ctx context.Context, query string, scored []ScoredChunk) ([]ScoredChunk, error) {
	if len(scored) > rerankCandidateCap {
		scored = scored[:rerankCandidateCap]
	}
	candidates := make([]RerankCandidate, len(scored))
	for i, s := range scored {
		candidates[i] = RerankCandidate{ChunkID: s.Chunk.ID, Text: s.Chunk.Text}
	}

	results, err := p.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	scoreByID := make(map[string]float64, len(results))
	for _, r := range results {
		scoreByID[r.ChunkID] = r.Score
	}
	for i := range scored {
		if s, ok := scoreByID[scored[i].Chunk.ID]; ok {
			scored[i].Score = s
			scored[i].Reranked = true
		}
	}
	return scored, nil
}

// expandServices collects the distinct service names among scored's
// chunks and asks the graph expander for each one's structured
// neighborhood.
func (p *Pipeline) expandServices(scored []ScoredChunk, depth int) []graph.Neighborhood {
	if depth <= 0 {
		depth = 1
	}
	seenService := map[string]struct{}{}
	var out []graph.Neighborhood
	for _, s := range scored {
		svc := s.Chunk.Metadata.ServiceName
		if svc == "" {
			continue
		}
		if _, ok := seenService[svc]; ok {
			continue
		}
		seenService[svc] = struct{}{}
		out = append(out, p.expander.GetNeighborhood(svc, depth))
	}
	return out
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
