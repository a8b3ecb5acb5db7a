package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/strataforge/knowgraph/internal/graph"
	"github.com/strataforge/knowgraph/internal/store"
	"github.com/strataforge/knowgraph/internal/types"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type fakeVectorSearcher struct {
	results []*store.VectorResult
}

func (f fakeVectorSearcher) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	return f.results, nil
}

type fakeBM25Searcher struct {
	code []*store.BM25Result
	nlp  []*store.BM25Result
}

func (f fakeBM25Searcher) SearchCode(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	return f.code, nil
}

func (f fakeBM25Searcher) SearchNLP(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	return f.nlp, nil
}

type fakeLookup struct {
	chunks map[string]*types.CleanChunk
}

func (f fakeLookup) Get(id string) (*types.CleanChunk, bool) {
	c, ok := f.chunks[id]
	return c, ok
}

func newFakeChunk(id string, ct types.CorpusType) *types.CleanChunk {
	return &types.CleanChunk{ID: id, Text: "chunk " + id, SourceType: types.SourceType{CorpusType: ct}}
}

func TestPipelineQueryBasicFlow(t *testing.T) {
	lookup := fakeLookup{chunks: map[string]*types.CleanChunk{
		"a": newFakeChunk("a", types.CorpusCodeLogic),
		"b": newFakeChunk("b", types.CorpusCodeLogic),
	}}
	p := New(
		fakeEmbedder{},
		fakeVectorSearcher{results: []*store.VectorResult{{ID: "a"}, {ID: "b"}}},
		fakeBM25Searcher{code: []*store.BM25Result{{DocID: "a"}}},
		lookup,
	)

	result, err := p.Query(context.Background(), QueryRequest{Query: "test", TopK: 10})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(result.Chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(result.Chunks), result.Chunks)
	}
	top := result.Chunks[0]
	if top.Chunk.ID != "a" {
		t.Fatalf("expected 'a' (dense+bm25 overlap) to rank first, got %s", top.Chunk.ID)
	}
	if top.DenseRank != 1 || top.BM25CodeRank != 1 || top.BM25NLPRank != 0 {
		t.Fatalf("per-ranker ranks = %d/%d/%d, want 1/1/0", top.DenseRank, top.BM25CodeRank, top.BM25NLPRank)
	}
	if !top.FromBM25 {
		t.Fatal("expected FromBM25=true for a code-BM25 hit")
	}
}

func TestPipelineQueryAppliesFilters(t *testing.T) {
	lookup := fakeLookup{chunks: map[string]*types.CleanChunk{
		"a": newFakeChunk("a", types.CorpusCodeLogic),
		"b": newFakeChunk("b", types.CorpusDocReadme),
	}}
	p := New(
		fakeEmbedder{},
		fakeVectorSearcher{results: []*store.VectorResult{{ID: "a"}, {ID: "b"}}},
		fakeBM25Searcher{},
		lookup,
	)

	result, err := p.Query(context.Background(), QueryRequest{
		Query: "test", TopK: 10,
		Filters: Filters{CorpusTypes: []types.CorpusType{types.CorpusDocReadme}},
	})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(result.Chunks) != 1 || result.Chunks[0].Chunk.ID != "b" {
		t.Fatalf("expected only the DOC_README chunk to survive the filter, got %+v", result.Chunks)
	}
}

func TestPipelineQueryGraphExpansion(t *testing.T) {
	lookup := fakeLookup{chunks: map[string]*types.CleanChunk{
		"a": {ID: "a", SourceType: types.SourceType{CorpusType: types.CorpusCodeDeploy}, Metadata: types.Metadata{ServiceName: "svc-a"}},
	}}
	p := New(
		fakeEmbedder{},
		fakeVectorSearcher{results: []*store.VectorResult{{ID: "a"}}},
		fakeBM25Searcher{},
		lookup,
		WithGraphExpander(fakeExpander{neighborhoods: map[string]graph.Neighborhood{
			"svc-a": {Service: "svc-a", CalledBy: []string{"svc-b"}, Calls: []string{"svc-c"}},
		}}),
	)

	result, err := p.Query(context.Background(), QueryRequest{Query: "test", TopK: 10, ExpandGraph: true})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(result.ServiceContext) != 1 {
		t.Fatalf("expected 1 service neighborhood, got %+v", result.ServiceContext)
	}
	n := result.ServiceContext[0]
	if n.Service != "svc-a" || len(n.CalledBy) != 1 || len(n.Calls) != 1 {
		t.Fatalf("unexpected neighborhood: %+v", n)
	}
	related := result.RelatedServices()
	if len(related) != 2 {
		t.Fatalf("RelatedServices() = %v, want [svc-b svc-c]", related)
	}
}

type fakeExpander struct {
	neighborhoods map[string]graph.Neighborhood
}

func (f fakeExpander) GetNeighborhood(service string, depth int) graph.Neighborhood {
	return f.neighborhoods[service]
}

func TestPipelineQueryClockControlsFreshness(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	convo := &types.CleanChunk{
		ID:         "c1",
		SourceType: types.SourceType{CorpusType: types.CorpusConvoSlack},
		Metadata:   types.Metadata{Timestamp: &ts},
	}
	lookup := fakeLookup{chunks: map[string]*types.CleanChunk{"c1": convo}}
	fixedNow := ts.Add(90 * 24 * time.Hour)

	p := New(
		fakeEmbedder{},
		fakeVectorSearcher{results: []*store.VectorResult{{ID: "c1"}}},
		fakeBM25Searcher{},
		lookup,
		WithClock(func() time.Time { return fixedNow }),
		WithFreshnessParams(90, 1.0),
	)

	result, err := p.Query(context.Background(), QueryRequest{Query: "incident", TopK: 10})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("expected one chunk, got %+v", result.Chunks)
	}
	// One half-life old at weight 1: the score is the decay factor 0.5.
	if got := result.Chunks[0].Score; got < 0.5-1e-9 || got > 0.5+1e-9 {
		t.Fatalf("score = %v, want 0.5", got)
	}
}

type failingReranker struct{}

func (failingReranker) Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error) {
	return nil, context.DeadlineExceeded
}

func TestPipelineQueryDegradesWhenRerankerFails(t *testing.T) {
	lookup := fakeLookup{chunks: map[string]*types.CleanChunk{
		"a": newFakeChunk("a", types.CorpusCodeLogic),
	}}
	p := New(
		fakeEmbedder{},
		fakeVectorSearcher{results: []*store.VectorResult{{ID: "a"}}},
		fakeBM25Searcher{},
		lookup,
		WithReranker(failingReranker{}),
	)

	result, err := p.Query(context.Background(), QueryRequest{Query: "test", TopK: 5, Rerank: true})
	if err != nil {
		t.Fatalf("Query() should degrade, not fail: %v", err)
	}
	if len(result.Chunks) != 1 {
		t.Fatalf("expected fused results to survive a dead reranker, got %+v", result.Chunks)
	}
	var sawSkip bool
	for _, s := range result.Stages {
		if s.Name == "rerank_skipped" {
			sawSkip = true
		}
	}
	if !sawSkip {
		t.Fatal("expected a rerank_skipped stage entry")
	}
}
