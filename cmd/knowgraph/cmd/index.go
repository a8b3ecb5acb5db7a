package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/strataforge/knowgraph/internal/chunk"
	"github.com/strataforge/knowgraph/internal/config"
	"github.com/strataforge/knowgraph/internal/embed"
	kgerrors "github.com/strataforge/knowgraph/internal/errors"
	"github.com/strataforge/knowgraph/internal/link"
	"github.com/strataforge/knowgraph/internal/route"
	"github.com/strataforge/knowgraph/internal/scrub"
	"github.com/strataforge/knowgraph/internal/types"
)

// defaultIgnoredDirs are skipped outright during the walk, the same
// directories every source-control-aware tool in the retrieved pack
// excludes by default.
var defaultIgnoredDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, ".knowgraph": true,
	"dist": true, "build": true, "__pycache__": true, ".venv": true,
}

type indexOptions struct {
	dataDir  string
	repoName string
	backend  string
	model    string
	seed     string
	quiet    bool
}

// newIndexCmd creates the index command: walk a directory, chunk every
// recognized source file, scrub sensitive content, embed, and persist
// the resulting chunk store.
func newIndexCmd() *cobra.Command {
	opts := indexOptions{}

	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Ingest a directory into the knowledge graph index",
		Long: `Walks the given directory, classifies each file by corpus type
(code, deploy manifest, doc, conversation export), chunks it along the
appropriate boundary, runs the sensitivity-aware scrub gate, embeds the
result, and writes a hybrid dense+BM25+graph index to --data-dir.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "index storage directory (default: ~/.knowgraph/<project-hash>)")
	cmd.Flags().StringVar(&opts.repoName, "repo", "", "repo name recorded on every chunk (default: directory basename)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "embedding backend: ollama or static (default: ollama)")
	cmd.Flags().StringVar(&opts.model, "model", "", "embedding model name override")
	cmd.Flags().StringVar(&opts.seed, "scrub-seed", "", "deterministic seed for the pseudonymizer (default: from config)")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "suppress per-file progress output")

	return cmd
}

func runIndex(cmd *cobra.Command, root string, opts indexOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", root, err)
	}
	if opts.repoName == "" {
		opts.repoName = filepath.Base(absRoot)
	}
	if opts.dataDir == "" {
		opts.dataDir, err = defaultDataDir(absRoot)
		if err != nil {
			return fmt.Errorf("resolving data dir: %w", err)
		}
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return err
	}
	if opts.model != "" {
		cfg.Embeddings.Model = opts.model
	}
	if opts.seed == "" {
		opts.seed = cfg.Retrieval.PseudonymizerSeed
	}
	embedder, err := newEmbedder(ctx, cfg, opts.backend)
	if err != nil {
		return fmt.Errorf("building embedder: %w", err)
	}

	// One index run at a time per data dir: Finalize rebuilds BM25 and
	// the graph from a snapshot and must not race a second writer.
	lock := embed.NewFileLock(opts.dataDir)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking data dir: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	handles, err := openIndexHandles(opts.dataDir, embedder.Dimensions(), true)
	if err != nil {
		return err
	}
	defer handles.Close()

	dispatcher := chunk.NewDispatcher()
	gate := scrub.NewGate(opts.seed)
	routeExtractor := chunk.NewRouteExtractor()
	callExtractor := chunk.NewCallExtractor()

	files, err := discoverFiles(absRoot)
	if err != nil {
		return err
	}

	start := time.Now()
	var filesIndexed, chunksIndexed, filesSkipped int
	var repoRoutes []types.RouteDefinition
	var repoCalls []types.ServiceCall

	for _, relPath := range files {
		corpusType, ok := classifySource(relPath)
		if !ok {
			filesSkipped++
			continue
		}
		st, ok := types.Lookup(corpusType)
		if !ok {
			filesSkipped++
			continue
		}

		absPath := filepath.Join(absRoot, relPath)
		source, err := os.ReadFile(absPath)
		if err != nil {
			slog.Warn("skipping unreadable file", slog.String("path", relPath), slog.String("error", err.Error()))
			filesSkipped++
			continue
		}

		sourceURI := "file://" + filepath.ToSlash(filepath.Join(opts.repoName, relPath))
		meta := types.Metadata{RepoName: opts.repoName, FilePath: relPath}

		if corpusType == types.CorpusCodeLogic {
			repoRoutes = append(repoRoutes, routeExtractor.Extract(opts.repoName, relPath, string(source))...)
			calls, _ := callExtractor.Extract(sourceURI, string(source))
			repoCalls = append(repoCalls, calls...)
		}

		raw, err := dispatcher.Chunk(ctx, sourceURI, source, st, meta)
		if err != nil {
			slog.Warn("chunking failed", slog.String("path", relPath), slog.String("error", err.Error()))
			filesSkipped++
			continue
		}
		if len(raw) == 0 {
			continue
		}

		n, err := embedAndIndex(ctx, handles, gate, embedder, raw)
		if err != nil {
			slog.Warn("indexing failed", slog.String("path", relPath), slog.String("error", err.Error()))
			continue
		}

		filesIndexed++
		chunksIndexed += n
		if !opts.quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %s (%d chunks)\n", relPath, n)
		}
	}

	if err := handles.indexer.Finalize(ctx); err != nil {
		return fmt.Errorf("finalizing index: %w", err)
	}
	if err := handles.persist(); err != nil {
		return fmt.Errorf("persisting index: %w", err)
	}

	relations, misses, err := linkRepoCalls(opts.dataDir, opts.repoName, repoRoutes, repoCalls)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "done: %d files indexed, %d chunks, %d files skipped, %d services discovered, %d call sites linked (%d misses) (%s)\n",
		filesIndexed, chunksIndexed, filesSkipped, handles.graph.NodeCount(), relations, misses, time.Since(start).Round(time.Millisecond))
	return nil
}

// linkRepoCalls replaces this repo's routes in the persistent registry
// and resolves every detected call site against it. The registry
// accumulates across repos indexed into the same data dir, so calls
// into a service indexed earlier link to its real handlers.
func linkRepoCalls(dataDir, repoName string, routes []types.RouteDefinition, calls []types.ServiceCall) (linked, missed int, err error) {
	registry, err := route.OpenSQLiteRegistry(filepath.Join(dataDir, "routes.db"))
	if err != nil {
		return 0, 0, fmt.Errorf("opening route registry: %w", err)
	}
	defer registry.Close()

	registry.AddRoutes(repoName, routes)

	linker := link.NewLinker(registry)
	relations, misses := linker.LinkAll(calls)
	for _, m := range misses {
		slog.Debug("call_link_miss",
			slog.String("target", m.Call.TargetService),
			slog.String("reason", string(m.Reason)),
			slog.String("source", m.Call.SourceFile))
	}
	return len(relations), len(misses), nil
}

// embedAndIndex scrubs every raw chunk, embeds the clean text in one
// batch call, and indexes the result, returning the count actually
// inserted. A batch partially failing is not fatal. The embed call is
// retried with backoff since backend hiccups are transient.
func embedAndIndex(ctx context.Context, h *indexHandles, gate *scrub.Gate, embedder embed.Embedder, raw []*types.RawChunk) (int, error) {
	clean := make([]*types.CleanChunk, 0, len(raw))
	texts := make([]string, 0, len(raw))
	for _, r := range raw {
		c := gate.Scrub(r)
		clean = append(clean, c)
		texts = append(texts, c.Text)
	}

	vectors, err := kgerrors.RetryWithResult(ctx, kgerrors.DefaultRetryConfig(), func() ([][]float32, error) {
		return embedder.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return 0, kgerrors.EmbeddingError("embedding batch", err)
	}

	embedded := make([]*types.EmbeddedChunk, len(clean))
	for i, c := range clean {
		embedded[i] = &types.EmbeddedChunk{CleanChunk: *c, Vector: vectors[i]}
	}

	result, err := h.indexer.Index(ctx, embedded)
	if err != nil {
		return 0, err
	}
	return result.Inserted, nil
}

// discoverFiles walks root and returns every regular file's path
// relative to root, skipping hidden and vendored directories.
func discoverFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			name := d.Name()
			if name != "." && (strings.HasPrefix(name, ".") || defaultIgnoredDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out, err
}
