package cmd

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/strataforge/knowgraph/internal/config"
	"github.com/strataforge/knowgraph/internal/embed"
	"github.com/strataforge/knowgraph/internal/graph"
	"github.com/strataforge/knowgraph/internal/index"
	"github.com/strataforge/knowgraph/internal/store"
)

// indexHandles bundles the on-disk paths and open storage handles that
// index, search, and serve all share, so each command only needs to
// open and close them once.
type indexHandles struct {
	dataDir string
	vector  *store.HNSWStore
	bm25    *store.CompositeBM25Index
	graph   *graph.Graph
	indexer *index.Indexer
}

func vectorPath(dataDir string) string   { return filepath.Join(dataDir, "vectors.hnsw") }
func codeBM25Path(dataDir string) string { return filepath.Join(dataDir, "bm25-code.bleve") }
func nlpBM25Path(dataDir string) string  { return filepath.Join(dataDir, "bm25-nlp.bleve") }
func graphPath(dataDir string) string    { return filepath.Join(dataDir, "graph.json") }
func sidecarPath(dataDir string) string  { return filepath.Join(dataDir, "chunks.json") }

// openIndexHandles opens (or creates) the full storage stack at
// dataDir. fresh=true skips loading existing on-disk state; the index
// command always opens fresh and rebuilds the index from its walk.
func openIndexHandles(dataDir string, dims int, fresh bool) (*indexHandles, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dataDir, err)
	}

	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	if err != nil {
		return nil, fmt.Errorf("building vector store: %w", err)
	}
	bm, err := store.NewCompositeBM25Index(codeBM25Path(dataDir), nlpBM25Path(dataDir), store.DefaultBM25Config())
	if err != nil {
		return nil, fmt.Errorf("building bm25 index: %w", err)
	}
	g := graph.New()
	ix := index.New(vs, bm, g)

	h := &indexHandles{dataDir: dataDir, vector: vs, bm25: bm, graph: g, indexer: ix}
	if fresh {
		return h, nil
	}

	if vectorFileExists(dataDir) {
		if err := vs.Load(vectorPath(dataDir)); err != nil {
			return nil, fmt.Errorf("loading vector store: %w", err)
		}
	}
	if f, err := os.Open(sidecarPath(dataDir)); err == nil {
		err = ix.LoadSidecar(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("loading chunk sidecar: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("opening chunk sidecar: %w", err)
	}
	if f, err := os.Open(graphPath(dataDir)); err == nil {
		err = g.Load(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("loading service graph: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("opening service graph: %w", err)
	}

	return h, nil
}

func vectorFileExists(dataDir string) bool {
	_, err := os.Stat(vectorPath(dataDir))
	return err == nil
}

// persist writes every piece of Indexer state that does not already
// live on disk under bleve's own storage: the HNSW vector file, the
// chunk sidecar, and the service graph.
func (h *indexHandles) persist() error {
	if err := h.vector.Save(vectorPath(h.dataDir)); err != nil {
		return fmt.Errorf("saving vector store: %w", err)
	}

	sidecarTmp := sidecarPath(h.dataDir) + ".tmp"
	f, err := os.Create(sidecarTmp)
	if err != nil {
		return fmt.Errorf("creating chunk sidecar: %w", err)
	}
	if err := h.indexer.SaveSidecar(f); err != nil {
		f.Close()
		os.Remove(sidecarTmp)
		return fmt.Errorf("saving chunk sidecar: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(sidecarTmp)
		return fmt.Errorf("closing chunk sidecar: %w", err)
	}
	if err := os.Rename(sidecarTmp, sidecarPath(h.dataDir)); err != nil {
		return fmt.Errorf("renaming chunk sidecar: %w", err)
	}

	graphTmp := graphPath(h.dataDir) + ".tmp"
	gf, err := os.Create(graphTmp)
	if err != nil {
		return fmt.Errorf("creating service graph file: %w", err)
	}
	if err := h.graph.Save(gf); err != nil {
		gf.Close()
		os.Remove(graphTmp)
		return fmt.Errorf("saving service graph: %w", err)
	}
	if err := gf.Close(); err != nil {
		os.Remove(graphTmp)
		return fmt.Errorf("closing service graph file: %w", err)
	}
	return os.Rename(graphTmp, graphPath(h.dataDir))
}

func (h *indexHandles) Close() error {
	err1 := h.vector.Close()
	err2 := h.bm25.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// newEmbedder builds the configured embedder: Ollama by default,
// static for offline/BM25-only use. The --backend flag wins over the
// config file's provider.
func newEmbedder(ctx context.Context, cfg *config.Config, backend string) (embed.Embedder, error) {
	provider := embed.ParseProvider(backend)
	if backend == "" {
		provider = embed.ParseProvider(cfg.Embeddings.Provider)
	}
	return embed.NewEmbedder(ctx, provider, cfg.Embeddings.Model)
}

// defaultDataDir resolves the on-disk index location for root, mirroring
// the per-project hashed layout under the user's home directory.
func defaultDataDir(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".knowgraph", projectSlug(abs)), nil
}

func projectSlug(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return fmt.Sprintf("%x", sum)[:16]
}
