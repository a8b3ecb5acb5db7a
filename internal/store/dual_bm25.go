package store

import (
	"context"
	"fmt"
	"sort"
)

// CompositeBM25Index dispatches each document to one of two underlying
// Bleve indices by its Tokenizer family: code-aware identifiers are
// scored against one analyzer, prose against another. Search queries
// both and returns the merged, re-sorted result set, since a caller
// asking "what matches this query" doesn't know in advance which
// corpus a hit lives in.
type CompositeBM25Index struct {
	code *BleveBM25Index
	nlp  *BleveBM25Index
}

// NewCompositeBM25Index builds both underlying indices. codePath/nlpPath
// may be empty for in-memory indices (as with NewBleveBM25Index).
func NewCompositeBM25Index(codePath, nlpPath string, config BM25Config) (*CompositeBM25Index, error) {
	code, err := NewBleveBM25Index(codePath, config)
	if err != nil {
		return nil, fmt.Errorf("building code bm25 index: %w", err)
	}
	nlp, err := NewBleveBM25IndexNLP(nlpPath, config)
	if err != nil {
		return nil, fmt.Errorf("building nlp bm25 index: %w", err)
	}
	return &CompositeBM25Index{code: code, nlp: nlp}, nil
}

// Index routes each document to its tokenizer's index, defaulting to
// the code index when Tokenizer is unset.
func (c *CompositeBM25Index) Index(ctx context.Context, docs []*Document) error {
	var codeDocs, nlpDocs []*Document
	for _, d := range docs {
		if d.Tokenizer == BM25TokenizerNLP {
			nlpDocs = append(nlpDocs, d)
		} else {
			codeDocs = append(codeDocs, d)
		}
	}
	if len(codeDocs) > 0 {
		if err := c.code.Index(ctx, codeDocs); err != nil {
			return err
		}
	}
	if len(nlpDocs) > 0 {
		if err := c.nlp.Index(ctx, nlpDocs); err != nil {
			return err
		}
	}
	return nil
}

// SearchCode queries only the code-analyzer index, returning its own
// ranking. Retrieval treats this as one independent RRF ranker.
func (c *CompositeBM25Index) SearchCode(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	return c.code.Search(ctx, query, limit)
}

// SearchNLP queries only the NLP-analyzer index, the second
// independent RRF ranker.
func (c *CompositeBM25Index) SearchNLP(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	return c.nlp.Search(ctx, query, limit)
}

// Search satisfies the BM25Index interface by interleaving both
// indices' results by raw score. Raw BM25 scores are not comparable
// across two indices with different corpus statistics, so rank-based
// consumers should use SearchCode/SearchNLP and fuse the two rankings
// instead; this merged view exists for membership-style callers only.
func (c *CompositeBM25Index) Search(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	codeResults, err := c.code.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("code bm25 search: %w", err)
	}
	nlpResults, err := c.nlp.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("nlp bm25 search: %w", err)
	}

	merged := make([]*BM25Result, 0, len(codeResults)+len(nlpResults))
	merged = append(merged, codeResults...)
	merged = append(merged, nlpResults...)

	sortResultsByScoreDesc(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Delete removes docIDs from both indices; an ID absent from one is a
// no-op there.
func (c *CompositeBM25Index) Delete(ctx context.Context, docIDs []string) error {
	if err := c.code.Delete(ctx, docIDs); err != nil {
		return err
	}
	return c.nlp.Delete(ctx, docIDs)
}

// AllIDs returns the union of both indices' document IDs.
func (c *CompositeBM25Index) AllIDs() ([]string, error) {
	codeIDs, err := c.code.AllIDs()
	if err != nil {
		return nil, err
	}
	nlpIDs, err := c.nlp.AllIDs()
	if err != nil {
		return nil, err
	}
	return append(codeIDs, nlpIDs...), nil
}

// Stats sums both indices' document counts.
func (c *CompositeBM25Index) Stats() *IndexStats {
	codeStats := c.code.Stats()
	nlpStats := c.nlp.Stats()
	return &IndexStats{DocumentCount: codeStats.DocumentCount + nlpStats.DocumentCount}
}

// Save is a no-op, matching BleveBM25Index.Save: Bleve persists
// disk-backed indices automatically.
func (c *CompositeBM25Index) Save(path string) error { return nil }

// Load is a no-op here; each underlying index is opened directly by
// NewCompositeBM25Index against its own path.
func (c *CompositeBM25Index) Load(path string) error { return nil }

// Close closes both underlying indices.
func (c *CompositeBM25Index) Close() error {
	err1 := c.code.Close()
	err2 := c.nlp.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

var _ BM25Index = (*CompositeBM25Index)(nil)

func sortResultsByScoreDesc(results []*BM25Result) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
