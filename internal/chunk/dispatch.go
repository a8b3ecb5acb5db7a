package chunk

import (
	"context"

	"github.com/strataforge/knowgraph/internal/types"
)

// Chunker cuts one decoded source file into RawChunks. Every concrete
// chunker (AST, YAML, Markdown, Thread, WholeFile) implements this.
type Chunker interface {
	Chunk(ctx context.Context, sourceURI string, source []byte, st types.SourceType, meta types.Metadata) ([]*types.RawChunk, error)
}

// Dispatcher selects a Chunker by types.ChunkerKind, so callers walking
// a mixed corpus don't need a type switch of their own.
type Dispatcher struct {
	chunkers map[types.ChunkerKind]Chunker
}

// NewDispatcher builds a Dispatcher with one instance of every chunker
// kind named in the types.SourceType registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		chunkers: map[types.ChunkerKind]Chunker{
			types.ChunkerAST:       NewASTChunker(),
			types.ChunkerYAML:      NewYAMLChunker(),
			types.ChunkerMarkdown:  NewMarkdownChunker(),
			types.ChunkerThread:    NewThreadChunker(),
			types.ChunkerWholeFile: NewWholeFileChunker(),
		},
	}
}

// Chunk dispatches to the chunker registered for st.ChunkerKind.
func (d *Dispatcher) Chunk(ctx context.Context, sourceURI string, source []byte, st types.SourceType, meta types.Metadata) ([]*types.RawChunk, error) {
	c, ok := d.chunkers[st.ChunkerKind]
	if !ok {
		return nil, nil
	}
	return c.Chunk(ctx, sourceURI, source, st, meta)
}
