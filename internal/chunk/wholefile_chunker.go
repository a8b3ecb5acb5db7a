package chunk

import (
	"context"

	"github.com/strataforge/knowgraph/internal/types"
)

// WholeFileChunker handles CONVO_OTHER sources, the catch-all tier:
// content with no structure worth parsing, so the only
// boundary available is the sliding-window token budget applied
// directly over the raw bytes.
type WholeFileChunker struct{}

// NewWholeFileChunker builds a WholeFileChunker.
func NewWholeFileChunker() *WholeFileChunker {
	return &WholeFileChunker{}
}

// Chunk splits source into SlidingWindowTarget-token windows with
// SlidingWindowOverlap fractional overlap. Windows are cut on rune
// boundaries at about four characters a token, not on line boundaries
// as the AST chunker's oversized-symbol fallback is.
func (c *WholeFileChunker) Chunk(_ context.Context, sourceURI string, source []byte, st types.SourceType, meta types.Metadata) ([]*types.RawChunk, error) {
	text := string(source)
	if text == "" {
		return nil, nil
	}

	windows := slidingWindows(text, SlidingWindowTarget, SlidingWindowOverlap)
	out := make([]*types.RawChunk, 0, len(windows))
	for _, w := range windows {
		out = append(out, &types.RawChunk{
			ID:         types.ChunkID(sourceURI, w.start, w.end),
			SourceURI:  sourceURI,
			ByteRange:  types.ByteRange{Start: w.start, End: w.end},
			SourceType: st,
			Text:       w.text,
			Metadata:   meta.Clone(),
		})
	}
	return out, nil
}

type textWindow struct {
	start, end int
	text       string
}

// slidingWindows packs text into target-token windows, each overlapping
// the previous by overlapFraction of target, splitting only on rune
// boundaries.
func slidingWindows(text string, target int, overlapFraction float64) []textWindow {
	runes := []rune(text)
	if EstimateTokens(text) <= target {
		return []textWindow{{start: 0, end: len(text), text: text}}
	}

	approxCharsPerToken := 4
	windowChars := target * approxCharsPerToken
	overlapChars := int(float64(windowChars) * overlapFraction)
	if overlapChars >= windowChars {
		overlapChars = windowChars / 2
	}
	step := windowChars - overlapChars
	if step <= 0 {
		step = windowChars
	}

	var out []textWindow
	for start := 0; start < len(runes); start += step {
		end := start + windowChars
		if end > len(runes) {
			end = len(runes)
		}
		w := string(runes[start:end])
		byteStart := len(string(runes[:start]))
		out = append(out, textWindow{start: byteStart, end: byteStart + len(w), text: w})
		if end == len(runes) {
			break
		}
	}
	return out
}
