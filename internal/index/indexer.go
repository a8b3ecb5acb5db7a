// Package index implements the composite indexer: the single
// component holding the vector store, BM25 index, and service graph
// handles, so nothing else in the system can write to storage without
// going through its Index/DeleteBySource/Finalize contract. Retrieval
// gets read-only views.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/strataforge/knowgraph/internal/graph"
	"github.com/strataforge/knowgraph/internal/store"
	"github.com/strataforge/knowgraph/internal/types"
)

// Indexer owns the vector store, BM25 index, and service graph, plus
// an in-memory sidecar of every indexed EmbeddedChunk. The sidecar
// exists because the vector store is a pure ANN structure with no way
// to fetch a vector's original metadata back out, which Finalize and
// metadata-filtered search both need.
type Indexer struct {
	vector store.VectorStore
	bm25   store.BM25Index
	graph  *graph.Graph

	mu      sync.RWMutex
	records map[string]*types.EmbeddedChunk
}

// New builds an Indexer over the given storage handles.
func New(vector store.VectorStore, bm25 store.BM25Index, g *graph.Graph) *Indexer {
	return &Indexer{
		vector:  vector,
		bm25:    bm25,
		graph:   g,
		records: make(map[string]*types.EmbeddedChunk),
	}
}

// Index inserts chunks idempotently: re-indexing an existing ID
// replaces its vector, BM25 document, and sidecar record. Per-chunk
// failures (e.g. a dimension mismatch from the vector store) are
// collected into the returned BatchResult rather than aborting the
// whole batch.
func (ix *Indexer) Index(ctx context.Context, chunks []*types.EmbeddedChunk) (types.BatchResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var failed []types.FailedItem
	inserted := 0

	for _, c := range chunks {
		if err := ix.vector.Add(ctx, []string{c.ID}, [][]float32{c.Vector}); err != nil {
			failed = append(failed, types.FailedItem{ID: c.ID, Error: err.Error()})
			continue
		}

		tokenizer := store.BM25TokenizerCode
		if c.SourceType.BM25Tokenizer == types.TokenizerNLP {
			tokenizer = store.BM25TokenizerNLP
		}
		doc := &store.Document{ID: c.ID, Content: c.Text, Tokenizer: tokenizer}
		if err := ix.bm25.Index(ctx, []*store.Document{doc}); err != nil {
			_ = ix.vector.Delete(ctx, []string{c.ID})
			failed = append(failed, types.FailedItem{ID: c.ID, Error: err.Error()})
			continue
		}

		ix.records[c.ID] = c
		inserted++
	}

	return types.NewBatchResult(inserted, failed), nil
}

// DeleteBySource removes every chunk whose source matches prefix,
// dispatching on whether prefix looks like a repo name or a source
// URI: a prefix containing "/" or a URI scheme separator is treated as
// a source_uri prefix, otherwise as a repo_name prefix.
func (ix *Indexer) DeleteBySource(ctx context.Context, prefix string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	bySourceURI := strings.Contains(prefix, "/") || strings.Contains(prefix, "://")

	var toDelete []string
	for id, c := range ix.records {
		var match bool
		if bySourceURI {
			match = strings.HasPrefix(c.SourceURI, prefix)
		} else {
			match = strings.HasPrefix(c.Metadata.RepoName, prefix)
		}
		if match {
			toDelete = append(toDelete, id)
		}
	}
	if len(toDelete) == 0 {
		return nil
	}

	if err := ix.vector.Delete(ctx, toDelete); err != nil {
		return fmt.Errorf("deleting vectors for %q: %w", prefix, err)
	}
	if err := ix.bm25.Delete(ctx, toDelete); err != nil {
		return fmt.Errorf("deleting bm25 docs for %q: %w", prefix, err)
	}
	for _, id := range toDelete {
		delete(ix.records, id)
	}
	return nil
}

// Finalize rebuilds the BM25 index and service graph from the full
// current sidecar snapshot. It must not run concurrently with
// Index/DeleteBySource; the exclusive write lock here provides that.
func (ix *Indexer) Finalize(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	existingIDs, err := ix.bm25.AllIDs()
	if err != nil {
		return fmt.Errorf("listing existing bm25 docs: %w", err)
	}
	if len(existingIDs) > 0 {
		if err := ix.bm25.Delete(ctx, existingIDs); err != nil {
			return fmt.Errorf("clearing bm25 index: %w", err)
		}
	}

	clean := make([]*types.CleanChunk, 0, len(ix.records))
	var docs []*store.Document
	for _, c := range ix.records {
		clean = append(clean, &c.CleanChunk)

		tokenizer := store.BM25TokenizerCode
		if c.SourceType.BM25Tokenizer == types.TokenizerNLP {
			tokenizer = store.BM25TokenizerNLP
		}
		docs = append(docs, &store.Document{ID: c.ID, Content: c.Text, Tokenizer: tokenizer})
	}

	if len(docs) > 0 {
		if err := ix.bm25.Index(ctx, docs); err != nil {
			return fmt.Errorf("rebuilding bm25 index: %w", err)
		}
	}

	ix.graph.Reset()
	ix.graph.BuildFromChunks(clean)
	return nil
}

// Get returns the full chunk for id, if currently indexed.
func (ix *Indexer) Get(id string) (*types.CleanChunk, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	c, ok := ix.records[id]
	if !ok {
		return nil, false
	}
	return &c.CleanChunk, true
}

// Snapshot returns every currently indexed chunk. Used by callers that
// need the full corpus (e.g. rebuilding the route registry).
func (ix *Indexer) Snapshot() []*types.EmbeddedChunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]*types.EmbeddedChunk, 0, len(ix.records))
	for _, c := range ix.records {
		out = append(out, c)
	}
	return out
}

// Len reports how many chunks are currently indexed.
func (ix *Indexer) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// SaveSidecar writes the in-memory record map as JSON. The vector
// store and BM25 index persist themselves; this is the one piece of
// Indexer state with nowhere else to live, since neither storage
// backend hands back a chunk's original text and metadata.
func (ix *Indexer) SaveSidecar(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	records := make([]*types.EmbeddedChunk, 0, len(ix.records))
	for _, c := range ix.records {
		records = append(records, c)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// LoadSidecar replaces the in-memory record map from JSON written by
// SaveSidecar. It does not touch the vector store or BM25 index, which
// load their own on-disk state independently.
func (ix *Indexer) LoadSidecar(r io.Reader) error {
	var records []*types.EmbeddedChunk
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return fmt.Errorf("decoding indexer sidecar: %w", err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.records = make(map[string]*types.EmbeddedChunk, len(records))
	for _, c := range records {
		ix.records[c.ID] = c
	}
	return nil
}
