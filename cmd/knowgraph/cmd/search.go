package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strataforge/knowgraph/internal/config"
	"github.com/strataforge/knowgraph/internal/retrieval"
	"github.com/strataforge/knowgraph/internal/types"
)

type searchOptions struct {
	dataDir     string
	limit       int
	corpusTypes []string
	service     string
	repo        string
	rerank      bool
	expandGraph bool
	graphDepth  int
	format      string
}

// newSearchCmd creates the search command: query a previously built
// index via the hybrid retrieval pipeline.
func newSearchCmd() *cobra.Command {
	opts := searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the knowledge graph index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "index storage directory (default: ~/.knowgraph/<project-hash> of the current directory)")
	cmd.Flags().IntVar(&opts.limit, "limit", 10, "maximum results to return")
	cmd.Flags().StringSliceVar(&opts.corpusTypes, "corpus-type", nil, "restrict results to these corpus types (e.g. CODE_LOGIC,DOC_README)")
	cmd.Flags().StringVar(&opts.service, "service", "", "restrict results to chunks belonging to this service")
	cmd.Flags().StringVar(&opts.repo, "repo", "", "restrict results to chunks belonging to this repo")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "apply cross-encoder rerank to fused results")
	cmd.Flags().BoolVar(&opts.expandGraph, "expand-graph", false, "include related services from the service graph")
	cmd.Flags().IntVar(&opts.graphDepth, "graph-depth", 1, "service graph expansion depth")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format: text or json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dataDir := opts.dataDir
	if dataDir == "" {
		resolved, err := defaultDataDir(".")
		if err != nil {
			return fmt.Errorf("resolving data dir: %w", err)
		}
		dataDir = resolved
	}

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(ctx, cfg, "")
	if err != nil {
		return fmt.Errorf("building embedder: %w", err)
	}

	handles, err := openIndexHandles(dataDir, embedder.Dimensions(), false)
	if err != nil {
		return fmt.Errorf("opening index at %s: %w", dataDir, err)
	}
	defer handles.Close()

	pipeline := retrieval.New(embedder, handles.vector, handles.bm25, handles.indexer,
		retrieval.WithGraphExpander(handles.graph),
		retrieval.WithFreshnessParams(cfg.Retrieval.FreshnessHalfLifeDays, cfg.Retrieval.FreshnessWeight),
	)

	req := retrieval.QueryRequest{
		Query:       query,
		TopK:        opts.limit,
		Rerank:      opts.rerank,
		ExpandGraph: opts.expandGraph,
		GraphDepth:  opts.graphDepth,
		Filters: retrieval.Filters{
			CorpusTypes: parseCorpusTypes(opts.corpusTypes),
			ServiceName: opts.service,
			RepoName:    opts.repo,
		},
	}

	result, err := pipeline.Query(ctx, req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printTextResults(cmd, result)
	return nil
}

func parseCorpusTypes(raw []string) []types.CorpusType {
	if len(raw) == 0 {
		return nil
	}
	out := make([]types.CorpusType, 0, len(raw))
	for _, r := range raw {
		out = append(out, types.CorpusType(strings.ToUpper(strings.TrimSpace(r))))
	}
	return out
}

func printTextResults(cmd *cobra.Command, result *retrieval.QueryResult) {
	out := cmd.OutOrStdout()
	if len(result.Chunks) == 0 {
		fmt.Fprintln(out, "no results")
		return
	}
	for i, sc := range result.Chunks {
		c := sc.Chunk
		fmt.Fprintf(out, "%d. [%.4f] %s (%s)\n", i+1, sc.Score, c.SourceURI, c.SourceType.CorpusType)
		if c.Metadata.SymbolName != "" {
			fmt.Fprintf(out, "   symbol: %s\n", c.Metadata.SymbolName)
		}
		fmt.Fprintln(out, "   "+snippet(c.Text, 200))
	}
	if related := result.RelatedServices(); len(related) > 0 {
		fmt.Fprintf(out, "\nrelated services: %s\n", strings.Join(related, ", "))
	}
}

func snippet(text string, maxLen int) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
