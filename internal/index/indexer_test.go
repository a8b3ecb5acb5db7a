package index

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/strataforge/knowgraph/internal/graph"
	"github.com/strataforge/knowgraph/internal/store"
	"github.com/strataforge/knowgraph/internal/types"
)

type fakeVectorStore struct {
	vectors    map[string][]float32
	failOnIDs  map[string]bool
	deleteErr  error
	deletedIDs []string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{vectors: map[string][]float32{}, failOnIDs: map[string]bool{}}
}

func (f *fakeVectorStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	for i, id := range ids {
		if f.failOnIDs[id] {
			return errors.New("dimension mismatch")
		}
		f.vectors[id] = vectors[i]
	}
	return nil
}

func (f *fakeVectorStore) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	return nil, nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, ids []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, ids...)
	for _, id := range ids {
		delete(f.vectors, id)
	}
	return nil
}

func (f *fakeVectorStore) AllIDs() []string {
	out := make([]string, 0, len(f.vectors))
	for id := range f.vectors {
		out = append(out, id)
	}
	return out
}

func (f *fakeVectorStore) Contains(id string) bool {
	_, ok := f.vectors[id]
	return ok
}

func (f *fakeVectorStore) Count() int { return len(f.vectors) }

func (f *fakeVectorStore) Save(path string) error { return nil }
func (f *fakeVectorStore) Load(path string) error { return nil }
func (f *fakeVectorStore) Close() error           { return nil }

type fakeBM25Index struct {
	docs       map[string]*store.Document
	indexErr   error
	failOnIDs  map[string]bool
	deletedIDs []string
}

func newFakeBM25Index() *fakeBM25Index {
	return &fakeBM25Index{docs: map[string]*store.Document{}, failOnIDs: map[string]bool{}}
}

func (f *fakeBM25Index) Index(ctx context.Context, docs []*store.Document) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	for _, d := range docs {
		if f.failOnIDs[d.ID] {
			return errors.New("bm25 index failure")
		}
		f.docs[d.ID] = d
	}
	return nil
}

func (f *fakeBM25Index) Search(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	return nil, nil
}

func (f *fakeBM25Index) Delete(ctx context.Context, docIDs []string) error {
	f.deletedIDs = append(f.deletedIDs, docIDs...)
	for _, id := range docIDs {
		delete(f.docs, id)
	}
	return nil
}

func (f *fakeBM25Index) AllIDs() ([]string, error) {
	out := make([]string, 0, len(f.docs))
	for id := range f.docs {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeBM25Index) Stats() *store.IndexStats { return &store.IndexStats{DocumentCount: len(f.docs)} }
func (f *fakeBM25Index) Save(path string) error   { return nil }
func (f *fakeBM25Index) Load(path string) error   { return nil }
func (f *fakeBM25Index) Close() error             { return nil }

func testChunk(id, sourceURI string, ct types.CorpusType) *types.EmbeddedChunk {
	return &types.EmbeddedChunk{
		CleanChunk: types.CleanChunk{
			ID:         id,
			SourceURI:  sourceURI,
			Text:       "content for " + id,
			SourceType: types.SourceType{CorpusType: ct},
			Metadata:   types.Metadata{RepoName: "svc-repo"},
		},
		Vector: []float32{0.1, 0.2, 0.3},
	}
}

func TestIndexInsertsAndCountsSuccesses(t *testing.T) {
	vec, bm := newFakeVectorStore(), newFakeBM25Index()
	ix := New(vec, bm, graph.New())

	result, err := ix.Index(context.Background(), []*types.EmbeddedChunk{
		testChunk("a", "repo/a.go", types.CorpusCodeLogic),
		testChunk("b", "repo/b.go", types.CorpusCodeLogic),
	})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if result.Inserted != 2 {
		t.Fatalf("Inserted = %d, want 2", result.Inserted)
	}
	if len(result.Failed) != 0 {
		t.Fatalf("Failed = %+v, want empty", result.Failed)
	}
	if ix.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ix.Len())
	}
}

func TestIndexIdempotentReplace(t *testing.T) {
	vec, bm := newFakeVectorStore(), newFakeBM25Index()
	ix := New(vec, bm, graph.New())

	c1 := testChunk("a", "repo/a.go", types.CorpusCodeLogic)
	c1.Text = "original"
	if _, err := ix.Index(context.Background(), []*types.EmbeddedChunk{c1}); err != nil {
		t.Fatalf("first Index() error = %v", err)
	}

	c2 := testChunk("a", "repo/a.go", types.CorpusCodeLogic)
	c2.Text = "replaced"
	if _, err := ix.Index(context.Background(), []*types.EmbeddedChunk{c2}); err != nil {
		t.Fatalf("second Index() error = %v", err)
	}

	if ix.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (replace, not accumulate)", ix.Len())
	}
	got, ok := ix.Get("a")
	if !ok || got.Text != "replaced" {
		t.Fatalf("Get(a) = %+v, ok=%v, want replaced text", got, ok)
	}
}

func TestIndexCollectsPerChunkFailures(t *testing.T) {
	vec, bm := newFakeVectorStore(), newFakeBM25Index()
	vec.failOnIDs["bad"] = true
	ix := New(vec, bm, graph.New())

	result, err := ix.Index(context.Background(), []*types.EmbeddedChunk{
		testChunk("good", "repo/good.go", types.CorpusCodeLogic),
		testChunk("bad", "repo/bad.go", types.CorpusCodeLogic),
	})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if result.Inserted != 1 {
		t.Fatalf("Inserted = %d, want 1", result.Inserted)
	}
	if len(result.Failed) != 1 || result.Failed[0].ID != "bad" {
		t.Fatalf("Failed = %+v, want one entry for 'bad'", result.Failed)
	}
	if !result.PartialSuccess {
		t.Fatal("expected PartialSuccess = true")
	}
}

func TestIndexRollsBackVectorOnBM25Failure(t *testing.T) {
	vec, bm := newFakeVectorStore(), newFakeBM25Index()
	bm.failOnIDs["a"] = true
	ix := New(vec, bm, graph.New())

	result, err := ix.Index(context.Background(), []*types.EmbeddedChunk{
		testChunk("a", "repo/a.go", types.CorpusCodeLogic),
	})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if result.Inserted != 0 || len(result.Failed) != 1 {
		t.Fatalf("expected full failure, got %+v", result)
	}
	if vec.Contains("a") {
		t.Fatal("expected vector to be rolled back after bm25 failure")
	}
}

func TestDeleteBySourceURIPrefix(t *testing.T) {
	vec, bm := newFakeVectorStore(), newFakeBM25Index()
	ix := New(vec, bm, graph.New())
	ix.Index(context.Background(), []*types.EmbeddedChunk{
		testChunk("a", "order-service/a.go", types.CorpusCodeLogic),
		testChunk("b", "user-service/b.go", types.CorpusCodeLogic),
	})

	if err := ix.DeleteBySource(context.Background(), "order-service/"); err != nil {
		t.Fatalf("DeleteBySource() error = %v", err)
	}
	if ix.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", ix.Len())
	}
	if _, ok := ix.Get("a"); ok {
		t.Fatal("expected chunk 'a' to be deleted")
	}
	if _, ok := ix.Get("b"); !ok {
		t.Fatal("expected chunk 'b' to survive")
	}
}

func TestDeleteBySourceRepoNamePrefix(t *testing.T) {
	vec, bm := newFakeVectorStore(), newFakeBM25Index()
	ix := New(vec, bm, graph.New())
	ix.Index(context.Background(), []*types.EmbeddedChunk{
		testChunk("a", "a.go", types.CorpusCodeLogic),
	})

	if err := ix.DeleteBySource(context.Background(), "svc-repo"); err != nil {
		t.Fatalf("DeleteBySource() error = %v", err)
	}
	if ix.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", ix.Len())
	}
}

func TestFinalizeRebuildsBM25AndGraph(t *testing.T) {
	vec, bm := newFakeVectorStore(), newFakeBM25Index()
	ix := New(vec, bm, graph.New())
	ix.Index(context.Background(), []*types.EmbeddedChunk{
		testChunk("a", "a.go", types.CorpusCodeLogic),
		testChunk("b", "b.go", types.CorpusCodeLogic),
	})

	if err := ix.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	ids, err := bm.AllIDs()
	if err != nil {
		t.Fatalf("AllIDs() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 rebuilt bm25 docs, got %d", len(ids))
	}
}

func TestSnapshotReturnsAllRecords(t *testing.T) {
	vec, bm := newFakeVectorStore(), newFakeBM25Index()
	ix := New(vec, bm, graph.New())
	ix.Index(context.Background(), []*types.EmbeddedChunk{
		testChunk("a", "a.go", types.CorpusCodeLogic),
		testChunk("b", "b.go", types.CorpusCodeLogic),
	})
	snap := ix.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() len = %d, want 2", len(snap))
	}
}

func TestSaveLoadSidecarRoundTrip(t *testing.T) {
	vec, bm := newFakeVectorStore(), newFakeBM25Index()
	ix := New(vec, bm, graph.New())
	ix.Index(context.Background(), []*types.EmbeddedChunk{
		testChunk("a", "a.go", types.CorpusCodeLogic),
	})

	var buf bytes.Buffer
	if err := ix.SaveSidecar(&buf); err != nil {
		t.Fatalf("SaveSidecar() error = %v", err)
	}

	ix2 := New(newFakeVectorStore(), newFakeBM25Index(), graph.New())
	if err := ix2.LoadSidecar(&buf); err != nil {
		t.Fatalf("LoadSidecar() error = %v", err)
	}
	if ix2.Len() != 1 {
		t.Fatalf("Len() after load = %d, want 1", ix2.Len())
	}
	got, ok := ix2.Get("a")
	if !ok || got.Text != "content for a" {
		t.Fatalf("Get(a) after load = %+v, ok=%v", got, ok)
	}
}
