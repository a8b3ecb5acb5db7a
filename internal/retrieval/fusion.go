package retrieval

import (
	"sort"

	"github.com/strataforge/knowgraph/internal/store"
)

// DefaultRRFConstant is the RRF smoothing parameter k.
const DefaultRRFConstant = 60

// FusedResult is one chunk ID surviving RRF fusion, carrying each
// ranker's raw score and rank alongside the combined RRF score. A rank
// of 0 means the ID did not appear in that ranker's list.
type FusedResult struct {
	ChunkID  string
	RRFScore float64

	DenseScore    float64
	BM25CodeScore float64
	BM25NLPScore  float64

	DenseRank    int
	BM25CodeRank int
	BM25NLPRank  int
}

// Fuse combines three rankers — dense, code-tokenized BM25, and
// NLP-tokenized BM25 — with Reciprocal Rank Fusion:
// rrf_score = sum over rankers of 1/(k+rank). Retention follows the
// lazy-BM25-contributor rule: either BM25 ranking only ever boosts the
// score of an ID the dense search already retrieved. An ID present in
// a BM25 list but absent from the dense list contributes nothing and
// is never added to the output. That is a deliberate precision/latency
// trade; do not "fix" it to the union variant.
func Fuse(dense []*store.VectorResult, bm25Code, bm25NLP []*store.BM25Result, k int) []FusedResult {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	if len(dense) == 0 {
		return nil
	}

	type bm25Entry struct {
		rank  int
		score float64
	}
	index := func(results []*store.BM25Result) map[string]bm25Entry {
		m := make(map[string]bm25Entry, len(results))
		for i, r := range results {
			m[r.DocID] = bm25Entry{rank: i + 1, score: r.Score}
		}
		return m
	}
	codeByID := index(bm25Code)
	nlpByID := index(bm25NLP)

	out := make([]FusedResult, 0, len(dense))
	for i, r := range dense {
		rank := i + 1
		fused := FusedResult{
			ChunkID:    r.ID,
			DenseScore: float64(r.Score),
			DenseRank:  rank,
			RRFScore:   1.0 / float64(k+rank),
		}
		if e, ok := codeByID[r.ID]; ok {
			fused.BM25CodeRank = e.rank
			fused.BM25CodeScore = e.score
			fused.RRFScore += 1.0 / float64(k+e.rank)
		}
		if e, ok := nlpByID[r.ID]; ok {
			fused.BM25NLPRank = e.rank
			fused.BM25NLPScore = e.score
			fused.RRFScore += 1.0 / float64(k+e.rank)
		}
		out = append(out, fused)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RRFScore > out[j].RRFScore
	})
	return out
}
