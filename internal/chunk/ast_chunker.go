package chunk

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/strataforge/knowgraph/internal/types"
)

// ASTChunker splits source files along tree-sitter symbol boundaries:
// one chunk per top-level function, method, class, interface, type, or
// top-level const/var group. A boundary node that exceeds
// MaxChunkTokens is split further, first by merging its own nested
// boundary children up to budget, then by a token-overlapping sliding
// window; pieces produced by that fallback are marked as fragments of
// their parent symbol. Files with no boundary nodes at all (scripts,
// unsupported grammars) fall back to sliding-window or line-based
// chunking over the whole file.
type ASTChunker struct {
	parser    *Parser
	extractor *SymbolExtractor
	registry  *LanguageRegistry
}

// NewASTChunker builds an ASTChunker against the default language
// registry (Go, TypeScript, TSX, JavaScript, JSX, Python).
func NewASTChunker() *ASTChunker {
	registry := DefaultRegistry()
	return &ASTChunker{
		parser:    NewParserWithRegistry(registry),
		extractor: NewSymbolExtractorWithRegistry(registry),
		registry:  registry,
	}
}

// boundaryNode pairs a classified Symbol with the AST node it came
// from, so oversized boundaries can recurse into their own children.
type boundaryNode struct {
	node   *Node
	symbol *Symbol
}

// Chunk splits one file's source into RawChunks. sourceURI is used both
// for language detection (by extension) and as the provenance half of
// each chunk's ID.
func (c *ASTChunker) Chunk(ctx context.Context, sourceURI string, source []byte, st types.SourceType, meta types.Metadata) ([]*types.RawChunk, error) {
	language, ok := c.languageForURI(sourceURI)
	if !ok {
		return c.chunkByLines(sourceURI, source, st, meta), nil
	}

	tree, err := c.parser.Parse(ctx, source, language)
	if err != nil {
		// A parse failure downgrades to line chunking; it never crosses
		// a crawler boundary as an error.
		slog.Warn("ast_parse_failed",
			slog.String("source", sourceURI),
			slog.String("language", language),
			slog.String("error", err.Error()))
		return c.chunkByLines(sourceURI, source, st, meta), nil
	}
	meta.Language = language

	boundaries := c.topLevelBoundaries(tree.Root, source, language)
	if len(boundaries) == 0 {
		out := c.chunksFromRanges(sourceURI, source, st, meta, nil, slidingWindowLines(source, 0, len(source)))
		AssignFileCallsToChunks(sourceURI, string(source), out)
		return out, nil
	}

	var out []*types.RawChunk
	for _, b := range boundaries {
		out = append(out, c.chunkBoundary(sourceURI, source, st, meta, language, b)...)
	}
	AssignFileCallsToChunks(sourceURI, string(source), out)
	return out, nil
}

func (c *ASTChunker) languageForURI(sourceURI string) (string, bool) {
	ext := filepath.Ext(sourceURI)
	config, ok := c.registry.GetByExtension(ext)
	if !ok {
		return "", false
	}
	return config.Name, true
}

// topLevelBoundaries walks the tree top-down, stopping at the first
// matching boundary on each branch — a class's own methods are not
// separately emitted here, they live inside the class's chunk unless
// that chunk is later split.
func (c *ASTChunker) topLevelBoundaries(n *Node, source []byte, language string) []boundaryNode {
	var out []boundaryNode
	var walk func(node *Node)
	walk = func(node *Node) {
		if sym := c.extractor.ClassifyNode(node, source, language); sym != nil {
			out = append(out, boundaryNode{node: node, symbol: sym})
			return
		}
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(n)
	return out
}

// chunkBoundary emits the chunk(s) for one boundary node: a single
// chunk when it fits the budget, otherwise a split by the fallback
// chain described on ASTChunker.
func (c *ASTChunker) chunkBoundary(sourceURI string, source []byte, st types.SourceType, meta types.Metadata, language string, b boundaryNode) []*types.RawChunk {
	text := b.node.GetContent(source)
	if EstimateTokens(text) <= MaxChunkTokens {
		return []*types.RawChunk{c.newChunk(sourceURI, st, meta, b.symbol, int(b.node.StartByte), int(b.node.EndByte), text)}
	}

	if nested := c.directChildBoundaries(b.node, source, language); len(nested) > 0 {
		return c.mergeSiblings(sourceURI, source, st, meta, language, b, nested)
	}

	ranges := slidingWindowLines(source, int(b.node.StartByte), int(b.node.EndByte))
	return c.fragmentsFromRanges(sourceURI, source, st, meta, b.symbol, ranges)
}

// directChildBoundaries finds boundary nodes among b's direct
// descendants without crossing into a nested boundary's own children
// (e.g. a class's methods, not a method's inner closures).
func (c *ASTChunker) directChildBoundaries(n *Node, source []byte, language string) []boundaryNode {
	var out []boundaryNode
	var walk func(node *Node, root bool)
	walk = func(node *Node, root bool) {
		if !root {
			if sym := c.extractor.ClassifyNode(node, source, language); sym != nil {
				out = append(out, boundaryNode{node: node, symbol: sym})
				return
			}
		}
		for _, child := range node.Children {
			walk(child, false)
		}
	}
	walk(n, true)
	return out
}

// mergeSiblings greedily packs a node's nested boundary children into
// groups at or under MaxChunkTokens (recursive sibling-merge), falling
// back to the sliding window for any single child still too large on
// its own, and to the sliding window for the ungrouped text between and
// around the children.
func (c *ASTChunker) mergeSiblings(sourceURI string, source []byte, st types.SourceType, meta types.Metadata, language string, parent boundaryNode, children []boundaryNode) []*types.RawChunk {
	var out []*types.RawChunk
	cursor := int(parent.node.StartByte)

	flushGap := func(end int) {
		if end <= cursor {
			return
		}
		gap := strings.TrimSpace(string(source[cursor:end]))
		if gap == "" {
			cursor = end
			return
		}
		ranges := slidingWindowLines(source, cursor, end)
		out = append(out, c.fragmentsFromRanges(sourceURI, source, st, meta, parent.symbol, ranges)...)
		cursor = end
	}

	i := 0
	for i < len(children) {
		groupStart := int(children[i].node.StartByte)
		flushGap(groupStart)

		groupEnd := int(children[i].node.EndByte)
		j := i + 1
		for j < len(children) {
			candidateEnd := int(children[j].node.EndByte)
			if EstimateTokens(string(source[groupStart:candidateEnd])) > MaxChunkTokens {
				break
			}
			groupEnd = candidateEnd
			j++
		}

		groupText := string(source[groupStart:groupEnd])
		if EstimateTokens(groupText) <= MaxChunkTokens {
			sym := children[i].symbol
			if j > i+1 {
				sym = mergedSymbol(children[i:j])
			}
			out = append(out, c.newChunk(sourceURI, st, meta, sym, groupStart, groupEnd, groupText))
		} else {
			// A single child still exceeds budget on its own: recurse.
			out = append(out, c.chunkBoundary(sourceURI, source, st, meta, language, children[i])...)
			groupEnd = int(children[i].node.EndByte)
			j = i + 1
		}

		cursor = groupEnd
		i = j
	}

	flushGap(int(parent.node.EndByte))
	return out
}

// mergedSymbol synthesizes a representative symbol for a merged run of
// siblings: the first child's identity, since a merged chunk is still
// "about" whichever symbol starts it.
func mergedSymbol(group []boundaryNode) *Symbol {
	first := group[0].symbol
	last := group[len(group)-1].symbol
	merged := *first
	merged.EndLine = last.EndLine
	merged.EndByte = last.EndByte
	return &merged
}

func (c *ASTChunker) newChunk(sourceURI string, st types.SourceType, meta types.Metadata, sym *Symbol, start, end int, text string) *types.RawChunk {
	m := meta.Clone()
	m.SymbolName = sym.Name
	m.SymbolKind = string(sym.Type)
	m.Signature = truncateSignature(sym.Signature)
	return &types.RawChunk{
		ID:         types.ChunkID(sourceURI, start, end),
		SourceURI:  sourceURI,
		ByteRange:  types.ByteRange{Start: start, End: end},
		SourceType: st,
		Text:       text,
		Metadata:   m,
	}
}

// fragmentsFromRanges emits one RawChunk per byte range, all sharing
// the parent symbol's name but tagged symbol_kind="fragment" — the
// sliding-window fallback's output shape.
func (c *ASTChunker) fragmentsFromRanges(sourceURI string, source []byte, st types.SourceType, meta types.Metadata, parent *Symbol, ranges []types.ByteRange) []*types.RawChunk {
	var out []*types.RawChunk
	for _, r := range ranges {
		if r.Start >= r.End {
			continue
		}
		m := meta.Clone()
		if parent != nil {
			m.SymbolName = parent.Name
		}
		m.SymbolKind = string(SymbolFragment)
		out = append(out, &types.RawChunk{
			ID:         types.ChunkID(sourceURI, r.Start, r.End),
			SourceURI:  sourceURI,
			ByteRange:  r,
			SourceType: st,
			Text:       string(source[r.Start:r.End]),
			Metadata:   m,
		})
	}
	return out
}

// chunksFromRanges is fragmentsFromRanges without a parent symbol, used
// for whole-file sliding windows over files with no boundary nodes.
func (c *ASTChunker) chunksFromRanges(sourceURI string, source []byte, st types.SourceType, meta types.Metadata, parent *Symbol, ranges []types.ByteRange) []*types.RawChunk {
	return c.fragmentsFromRanges(sourceURI, source, st, meta, parent, ranges)
}

// chunkByLines is the fallback for files whose extension has no
// registered tree-sitter grammar: a plain sliding window over lines,
// same budget and overlap as the AST fallback, with no symbol metadata.
func (c *ASTChunker) chunkByLines(sourceURI string, source []byte, st types.SourceType, meta types.Metadata) []*types.RawChunk {
	ranges := slidingWindowLines(source, 0, len(source))
	var out []*types.RawChunk
	for _, r := range ranges {
		if r.Start >= r.End {
			continue
		}
		out = append(out, &types.RawChunk{
			ID:         types.ChunkID(sourceURI, r.Start, r.End),
			SourceURI:  sourceURI,
			ByteRange:  r,
			SourceType: st,
			Text:       string(source[r.Start:r.End]),
			Metadata:   meta.Clone(),
		})
	}
	return out
}

// truncateSignature caps a signature at 200 characters so an
// unusually long declaration line never dominates a chunk's metadata.
func truncateSignature(sig string) string {
	if len(sig) <= 200 {
		return sig
	}
	return sig[:200]
}

// slidingWindowLines splits source[start:end] into overlapping,
// line-aligned windows of roughly SlidingWindowTarget tokens with
// SlidingWindowOverlap overlap. It never breaks a line in half.
func slidingWindowLines(source []byte, start, end int) []types.ByteRange {
	if start >= end {
		return nil
	}

	lineStarts := []int{start}
	for i := start; i < end; i++ {
		if source[i] == '\n' && i+1 < end {
			lineStarts = append(lineStarts, i+1)
		}
	}

	targetChars := SlidingWindowTarget * TokensPerChar
	overlapChars := int(float64(targetChars) * SlidingWindowOverlap)
	if overlapChars >= targetChars {
		overlapChars = 0
	}
	stepChars := targetChars - overlapChars
	if stepChars <= 0 {
		stepChars = targetChars
	}

	var ranges []types.ByteRange
	li := 0
	for li < len(lineStarts) {
		winStart := lineStarts[li]
		winEnd := end
		nextLi := len(lineStarts)
		for lj := li + 1; lj < len(lineStarts); lj++ {
			if lineStarts[lj]-winStart >= targetChars {
				winEnd = lineStarts[lj]
				nextLi = lj
				break
			}
		}
		ranges = append(ranges, types.ByteRange{Start: winStart, End: winEnd})

		if nextLi >= len(lineStarts) {
			break
		}
		// Advance by stepChars worth of lines, keeping the overlap tail.
		advanceTo := winStart + stepChars
		newLi := nextLi
		for newLi > li && lineStarts[newLi] > advanceTo {
			newLi--
		}
		if newLi <= li {
			newLi = li + 1
		}
		li = newLi
	}
	return ranges
}
