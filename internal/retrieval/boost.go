package retrieval

import (
	"strings"

	"github.com/strataforge/knowgraph/internal/types"
)

// Boost pairs a keyword trigger with the score multiplier applied when
// the query contains it and the chunk's corpus type is in CorpusTypes.
// Multiple matching boosts stack multiplicatively.
type Boost struct {
	Keywords    []string
	CorpusTypes []types.CorpusType
	Multiplier  float64
}

// DefaultBoosts: deploy/incident-shaped queries favor deployment
// manifests and runbooks, how-to/api-shaped queries favor docs.
var DefaultBoosts = []Boost{
	{
		Keywords:    []string{"deploy", "deployment", "incident", "outage", "rollback"},
		CorpusTypes: []types.CorpusType{types.CorpusCodeDeploy, types.CorpusDocRunbook},
		Multiplier:  1.3,
	},
	{
		Keywords:    []string{"how to", "how do i", "api", "endpoint", "usage"},
		CorpusTypes: []types.CorpusType{types.CorpusDocReadme, types.CorpusDocGoogle},
		Multiplier:  1.2,
	},
}

// ApplyBoosts multiplies each chunk's score by every boost whose
// keyword appears in query (case-insensitive) and whose CorpusTypes
// includes the chunk's corpus type.
func ApplyBoosts(chunks []ScoredChunk, query string, boosts []Boost) {
	if len(boosts) == 0 {
		boosts = DefaultBoosts
	}
	lowerQuery := strings.ToLower(query)

	triggered := make([]Boost, 0, len(boosts))
	for _, b := range boosts {
		if containsAnyKeyword(lowerQuery, b.Keywords) {
			triggered = append(triggered, b)
		}
	}
	if len(triggered) == 0 {
		return
	}

	for i := range chunks {
		c := &chunks[i]
		if c.Chunk == nil {
			continue
		}
		for _, b := range triggered {
			if corpusTypeIn(c.Chunk.SourceType.CorpusType, b.CorpusTypes) {
				c.Score *= b.Multiplier
			}
		}
	}
}

func containsAnyKeyword(query string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(query, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func corpusTypeIn(ct types.CorpusType, set []types.CorpusType) bool {
	for _, c := range set {
		if c == ct {
			return true
		}
	}
	return false
}
