package chunk

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/strataforge/knowgraph/internal/types"
)

// MarkdownChunker splits documentation into chunks along heading
// boundaries, carrying a breadcrumb of the enclosing heading hierarchy
// on each chunk. It renders the document to goldmark's block-level
// token stream rather than scanning with regular expressions, so
// fenced code blocks, tables, and lists are recognized as atomic units
// instead of being split mid-block when a section exceeds budget.
type MarkdownChunker struct {
	md goldmark.Markdown
}

// NewMarkdownChunker builds a MarkdownChunker with goldmark's default
// CommonMark block parser (headings, fenced code, lists, blockquotes).
// The table extension is not enabled, so a pipe table is parsed as an
// ordinary paragraph block.
func NewMarkdownChunker() *MarkdownChunker {
	return &MarkdownChunker{md: goldmark.New()}
}

// Chunk implements the Chunker interface for DOC_* sources.
func (c *MarkdownChunker) Chunk(_ context.Context, sourceURI string, source []byte, st types.SourceType, meta types.Metadata) ([]*types.RawChunk, error) {
	if strings.TrimSpace(string(source)) == "" {
		return nil, nil
	}

	reader := text.NewReader(source)
	doc := c.md.Parser().Parse(reader)

	sections := splitIntoSections(doc, source)
	if len(sections) == 0 {
		return nil, nil
	}

	var out []*types.RawChunk
	for _, sec := range sections {
		out = append(out, chunkSection(sourceURI, source, st, meta, sec)...)
	}
	return out, nil
}

// mdSection is a run of top-level blocks under one heading breadcrumb.
type mdSection struct {
	breadcrumb []string
	level      int
	title      string
	blocks     []ast.Node
}

// splitIntoSections walks the document's top-level block children,
// starting a new section every time a heading is encountered and
// maintaining a breadcrumb stack (deeper levels cleared on a shallower
// heading, matching the document's nesting).
func splitIntoSections(doc ast.Node, source []byte) []*mdSection {
	var sections []*mdSection
	stack := make([]string, 6)
	var current *mdSection

	flush := func() {
		// A section whose only content is its own heading token (no
		// body blocks followed it before the next heading, or end of
		// document) carries nothing worth chunking.
		if current != nil && len(current.blocks) > 0 && !(current.title != "" && len(current.blocks) == 1) {
			sections = append(sections, current)
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if heading, ok := n.(*ast.Heading); ok {
			flush()
			level := heading.Level
			title := strings.TrimSpace(headingText(heading, source))
			if level >= 1 && level <= 6 {
				stack[level-1] = title
				for i := level; i < 6; i++ {
					stack[i] = ""
				}
			}
			var crumb []string
			for i := 0; i < level && i < 6; i++ {
				if stack[i] != "" {
					crumb = append(crumb, stack[i])
				}
			}
			current = &mdSection{breadcrumb: crumb, level: level, title: title, blocks: []ast.Node{n}}
			continue
		}

		if current == nil {
			current = &mdSection{blocks: []ast.Node{}}
		}
		current.blocks = append(current.blocks, n)
	}
	flush()

	return sections
}

// chunkSection emits one chunk for sec if its text fits the token
// budget, otherwise packs its blocks greedily into multiple chunks,
// never splitting a single block (code fence, table, list) across two
// chunks.
func chunkSection(sourceURI string, source []byte, st types.SourceType, meta types.Metadata, sec *mdSection) []*types.RawChunk {
	start, end := blockRangeUnion(sec.blocks, source)
	if start < 0 {
		return nil
	}
	fullText := string(source[start:end])

	breadcrumbStr := strings.Join(sec.breadcrumb, " > ")

	if EstimateTokens(fullText) <= MaxChunkTokens {
		return []*types.RawChunk{newMarkdownChunk(sourceURI, st, meta, sec, breadcrumbStr, start, end, fullText)}
	}

	var out []*types.RawChunk
	groupStart := -1
	groupEnd := -1
	flush := func() {
		if groupStart < 0 {
			return
		}
		chunkText := string(source[groupStart:groupEnd])
		out = append(out, newMarkdownChunk(sourceURI, st, meta, sec, breadcrumbStr, groupStart, groupEnd, chunkText))
		groupStart, groupEnd = -1, -1
	}

	for _, block := range sec.blocks {
		bs, be := blockByteRange(block, source)
		if bs < 0 {
			continue
		}
		if groupStart < 0 {
			groupStart, groupEnd = bs, be
			continue
		}
		candidate := string(source[groupStart:be])
		if EstimateTokens(candidate) > MaxChunkTokens {
			flush()
			groupStart, groupEnd = bs, be
			continue
		}
		groupEnd = be
	}
	flush()

	return out
}

func newMarkdownChunk(sourceURI string, st types.SourceType, meta types.Metadata, sec *mdSection, breadcrumb string, start, end int, text string) *types.RawChunk {
	m := meta.Clone()
	m.SectionPath = append([]string(nil), sec.breadcrumb...)
	return &types.RawChunk{
		ID:            types.ChunkID(sourceURI, start, end),
		SourceURI:     sourceURI,
		ByteRange:     types.ByteRange{Start: start, End: end},
		SourceType:    st,
		Text:          text,
		ContextPrefix: strings.TrimRight(sourceURI+" > "+breadcrumb, " >"),
		Metadata:      m,
	}
}

// blockRangeUnion finds the byte span covering every block in blocks.
func blockRangeUnion(blocks []ast.Node, source []byte) (int, int) {
	start, end := -1, -1
	for _, b := range blocks {
		bs, be := blockByteRange(b, source)
		if bs < 0 {
			continue
		}
		if start < 0 || bs < start {
			start = bs
		}
		if be > end {
			end = be
		}
	}
	return start, end
}

// headingText concatenates the raw source text of a heading's inline
// text children, giving a plain-text title for the breadcrumb.
func headingText(h *ast.Heading, source []byte) string {
	var sb strings.Builder
	var walk func(n ast.Node)
	walk = func(n ast.Node) {
		if t, ok := n.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(h)
	return sb.String()
}

// blockByteRange returns a node's byte span in source. Leaf/line-bearing
// blocks (paragraph, heading, fenced code, html block) answer directly
// via Lines(); container blocks (list, list item, blockquote) recurse
// into their children since they carry no lines of their own.
func blockByteRange(n ast.Node, source []byte) (int, int) {
	if lb, ok := n.(interface{ Lines() *text.Segments }); ok {
		lines := lb.Lines()
		if lines.Len() > 0 {
			first := lines.At(0)
			last := lines.At(lines.Len() - 1)
			return first.Start, last.Stop
		}
	}

	start, end := -1, -1
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		cs, ce := blockByteRange(c, source)
		if cs < 0 {
			continue
		}
		if start < 0 || cs < start {
			start = cs
		}
		if ce > end {
			end = ce
		}
	}
	return start, end
}
