package retrieval

import (
	"math"
	"time"

	"github.com/strataforge/knowgraph/internal/types"
)

// DefaultFreshnessHalfLifeDays is how many days it takes a
// conversational chunk's freshness decay to reach 0.5, absent an
// explicit override.
const DefaultFreshnessHalfLifeDays = 90.0

// DefaultFreshnessWeight is how much the decay factor blends into the
// final score: final = (1-w)*base + w*decay.
const DefaultFreshnessWeight = 0.1

// isConversational reports whether a corpus type is eligible for
// freshness decay. Code and docs are treated as canonical even when
// old; only CONVO_* chunks decay. Do not widen this set silently.
func isConversational(ct types.CorpusType) bool {
	switch ct {
	case types.CorpusConvoSlack, types.CorpusConvoTranscript, types.CorpusConvoOther:
		return true
	default:
		return false
	}
}

// ApplyFreshness blends a time-decay factor into each conversational
// chunk's score: decay = 0.5^(age_days/half_life), final =
// (1-w)*base + w*decay. Chunks with no parseable timestamp, or whose
// corpus type is not conversational, are left untouched.
func ApplyFreshness(chunks []ScoredChunk, now time.Time, halfLifeDays, weight float64) {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultFreshnessHalfLifeDays
	}
	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}

	for i := range chunks {
		c := &chunks[i]
		if c.Chunk == nil || !isConversational(c.Chunk.SourceType.CorpusType) {
			continue
		}
		if c.Chunk.Metadata.Timestamp == nil {
			continue
		}
		ageDays := now.Sub(*c.Chunk.Metadata.Timestamp).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		decay := decayFactor(ageDays, halfLifeDays)
		c.Score = (1-weight)*c.Score + weight*decay
	}
}

func decayFactor(ageDays, halfLifeDays float64) float64 {
	return math.Pow(0.5, ageDays/halfLifeDays)
}
