package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strataforge/knowgraph/internal/config"
	"github.com/strataforge/knowgraph/internal/logging"
	"github.com/strataforge/knowgraph/internal/mcp"
	"github.com/strataforge/knowgraph/internal/retrieval"
)

type serveOptions struct {
	dataDir string
}

// newServeCmd creates the serve command: expose a built index over MCP
// stdio so agent clients can search it and walk the service graph.
func newServeCmd() *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index over MCP (stdio)",
		Long: `Loads the index at --data-dir and exposes it over the Model Context
Protocol on stdio: a hybrid search tool, a service-neighborhood tool,
and an index-status tool. Intended to be launched by an MCP client, not
interactively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "index storage directory (default: ~/.knowgraph/<project-hash> of the current directory)")

	return cmd
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Stdout belongs to the MCP transport from here on; all logging
	// goes to the file.
	logCleanup, err := logging.SetupMCPMode()
	if err != nil {
		return fmt.Errorf("setting up MCP logging: %w", err)
	}
	defer logCleanup()

	dataDir := opts.dataDir
	if dataDir == "" {
		dataDir, err = defaultDataDir(".")
		if err != nil {
			return fmt.Errorf("resolving data dir: %w", err)
		}
	}

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(ctx, cfg, "")
	if err != nil {
		return fmt.Errorf("building embedder: %w", err)
	}
	defer embedder.Close()

	handles, err := openIndexHandles(dataDir, embedder.Dimensions(), false)
	if err != nil {
		return fmt.Errorf("opening index at %s: %w", dataDir, err)
	}
	defer handles.Close()

	pipeline := retrieval.New(embedder, handles.vector, handles.bm25, handles.indexer,
		retrieval.WithGraphExpander(handles.graph),
		retrieval.WithFreshnessParams(cfg.Retrieval.FreshnessHalfLifeDays, cfg.Retrieval.FreshnessWeight),
	)

	server, err := mcp.NewServer(pipeline, handles.indexer, handles.graph, embedder, dataDir)
	if err != nil {
		return fmt.Errorf("building MCP server: %w", err)
	}

	return server.Serve(ctx)
}
