package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWStore is the approximate-nearest-neighbor store behind dense
// retrieval. It wraps coder/hnsw (pure Go, no CGO) and adds the two
// things the raw graph lacks: stable string chunk IDs mapped onto the
// graph's uint64 keys, and dimension validation on every write and
// query.
//
// Deletes are lazy: the node stays in the graph but its ID mapping is
// dropped, so it can never surface in results. Deleting graph nodes
// directly is unsafe in the underlying library when the last node goes.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	byID    map[string]uint64 // chunk ID -> graph key
	byKey   map[uint64]string // graph key -> chunk ID
	nextKey uint64

	closed bool
}

// hnswSidecar is the gob-encoded companion file holding the ID
// mappings and config; the graph itself persists via Export/Import.
type hnswSidecar struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorStoreConfig
}

// NewHNSWStore builds an empty store for the configured dimension.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:  graph,
		config: cfg,
		byID:   make(map[string]uint64),
		byKey:  make(map[uint64]string),
	}, nil
}

// Add inserts vectors under their chunk IDs. Re-adding an existing ID
// replaces it, so parallel or repeated inserts of the same chunk leave
// the store as if it had been inserted exactly once.
func (s *HNSWStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if oldKey, exists := s.byID[id]; exists {
			delete(s.byKey, oldKey)
			delete(s.byID, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		if s.config.Metric == "cos" {
			normalizeVectorInPlace(vec)
		}

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.byID[id] = key
		s.byKey[key] = id
	}

	return nil
}

// Search returns up to k nearest neighbors of query, best first.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(q)
	}

	nodes := s.graph.Search(q, k)

	results := make([]*VectorResult, 0, len(nodes))
	for _, node := range nodes {
		id, live := s.byKey[node.Key]
		if !live {
			// lazily-deleted node
			continue
		}
		distance := s.graph.Distance(q, node.Value)
		results = append(results, &VectorResult{
			ID:       id,
			Distance: distance,
			Score:    distanceToScore(distance, s.config.Metric),
		})
	}
	return results, nil
}

// Delete drops IDs from the store. Unknown IDs are ignored.
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}
	for _, id := range ids {
		if key, exists := s.byID[id]; exists {
			delete(s.byKey, key)
			delete(s.byID, id)
		}
	}
	return nil
}

// AllIDs returns every live chunk ID, in no particular order.
func (s *HNSWStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	return ids
}

// Contains reports whether id is live in the store.
func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}
	_, exists := s.byID[id]
	return exists
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.byID)
}

// HNSWStats reports live versus orphaned (lazily deleted) node counts.
type HNSWStats struct {
	ValidIDs   int
	GraphNodes int
	Orphans    int
}

// Stats returns store occupancy, including orphans left by lazy deletes.
func (s *HNSWStore) Stats() HNSWStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return HNSWStats{}
	}
	return HNSWStats{
		ValidIDs:   len(s.byID),
		GraphNodes: s.graph.Len(),
		Orphans:    s.graph.Len() - len(s.byID),
	}
}

// Save writes the graph to path and the ID sidecar to path+".meta",
// each via a temp file and rename so a crash never leaves a truncated
// index behind.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}

	if err := s.saveSidecar(path + ".meta"); err != nil {
		return fmt.Errorf("save id sidecar: %w", err)
	}
	return nil
}

func (s *HNSWStore) saveSidecar(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp sidecar: %w", err)
	}

	meta := hnswSidecar{IDMap: s.byID, NextKey: s.nextKey, Config: s.config}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("closing temp sidecar during cleanup", slog.String("error", closeErr.Error()))
		}
		os.Remove(tmp)
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close sidecar: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores a store previously written by Save. The sidecar is
// read first because it carries the config the graph was built under.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := s.loadSidecar(path + ".meta"); err != nil {
		return fmt.Errorf("load id sidecar: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	// Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (s *HNSWStore) loadSidecar(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open sidecar: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("closing sidecar file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswSidecar
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return fmt.Errorf("decode sidecar: %w", err)
	}

	s.byID = meta.IDMap
	s.byKey = make(map[uint64]string, len(meta.IDMap))
	s.nextKey = meta.NextKey
	s.config = meta.Config
	for id, key := range s.byID {
		s.byKey[key] = id
	}
	return nil
}

// Close marks the store unusable. The graph needs no explicit cleanup.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// ReadHNSWStoreDimensions reads the embedding dimension out of a saved
// store's sidecar without loading the graph. Returns 0 when no sidecar
// exists yet (fresh data directory).
func ReadHNSWStoreDimensions(vectorPath string) (int, error) {
	file, err := os.Open(vectorPath + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open sidecar: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("closing sidecar file", slog.String("error", err.Error()))
		}
	}()

	var meta hnswSidecar
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return 0, fmt.Errorf("decode sidecar: %w", err)
	}
	return meta.Config.Dimensions, nil
}

var _ VectorStore = (*HNSWStore)(nil)

// normalizeVectorInPlace scales v to unit length; the zero vector is
// left unchanged.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore maps a distance to a 0-1 similarity. Cosine distance
// spans [0,2]; L2 spans [0,inf).
func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
