package retrieval

import (
	"testing"

	"github.com/strataforge/knowgraph/internal/types"
)

func scoredChunk(ct types.CorpusType, score float64) ScoredChunk {
	return ScoredChunk{Chunk: &types.CleanChunk{SourceType: types.SourceType{CorpusType: ct}}, Score: score}
}

func TestApplyBoostsDeployKeyword(t *testing.T) {
	chunks := []ScoredChunk{
		scoredChunk(types.CorpusCodeDeploy, 1.0),
		scoredChunk(types.CorpusDocReadme, 1.0),
	}
	ApplyBoosts(chunks, "how do I roll back the deployment", DefaultBoosts)

	if chunks[0].Score <= 1.0 {
		t.Fatalf("expected the deploy chunk to be boosted, got %v", chunks[0].Score)
	}
}

func TestApplyBoostsStackMultiplicatively(t *testing.T) {
	boosts := []Boost{
		{Keywords: []string{"deploy"}, CorpusTypes: []types.CorpusType{types.CorpusCodeDeploy}, Multiplier: 1.3},
		{Keywords: []string{"incident"}, CorpusTypes: []types.CorpusType{types.CorpusCodeDeploy}, Multiplier: 1.2},
	}
	chunks := []ScoredChunk{scoredChunk(types.CorpusCodeDeploy, 1.0)}
	ApplyBoosts(chunks, "deploy incident", boosts)

	want := 1.3 * 1.2
	if diff := chunks[0].Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("Score = %v, want %v (stacked)", chunks[0].Score, want)
	}
}

func TestApplyBoostsNoMatchLeavesScoreUnchanged(t *testing.T) {
	chunks := []ScoredChunk{scoredChunk(types.CorpusDocReadme, 1.0)}
	ApplyBoosts(chunks, "what is the weather today", DefaultBoosts)
	if chunks[0].Score != 1.0 {
		t.Fatalf("expected no boost applied, got %v", chunks[0].Score)
	}
}

func TestApplyBoostsCaseInsensitive(t *testing.T) {
	chunks := []ScoredChunk{scoredChunk(types.CorpusCodeDeploy, 1.0)}
	ApplyBoosts(chunks, "DEPLOYMENT failed overnight", DefaultBoosts)
	if chunks[0].Score <= 1.0 {
		t.Fatalf("expected case-insensitive keyword match to boost, got %v", chunks[0].Score)
	}
}
