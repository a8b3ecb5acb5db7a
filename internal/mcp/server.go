package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/strataforge/knowgraph/internal/embed"
	"github.com/strataforge/knowgraph/internal/graph"
	"github.com/strataforge/knowgraph/internal/index"
	"github.com/strataforge/knowgraph/internal/retrieval"
	"github.com/strataforge/knowgraph/internal/types"
	"github.com/strataforge/knowgraph/pkg/version"
)

// Server is the MCP server exposing hybrid retrieval over a loaded
// index: a search tool, a service-graph tool and an index-status tool, bridging AI
// clients (Claude Code, Cursor) to the pipeline built in internal/retrieval.
type Server struct {
	mcp      *mcp.Server
	pipeline *retrieval.Pipeline
	indexer  *index.Indexer
	graph    *graph.Graph
	embedder embed.Embedder
	dataDir  string
	logger   *slog.Logger
}

// NewServer creates an MCP server over an already-opened index.
func NewServer(pipeline *retrieval.Pipeline, ix *index.Indexer, g *graph.Graph, embedder embed.Embedder, dataDir string) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("retrieval pipeline is required")
	}
	if ix == nil {
		return nil, fmt.Errorf("indexer is required")
	}

	s := &Server{
		pipeline: pipeline,
		indexer:  ix,
		graph:    g,
		embedder: embedder,
		dataDir:  dataDir,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "knowgraph",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Hybrid dense+keyword search over the indexed code, deploy manifests, docs, and conversation exports. Optionally expands into related services via the dependency graph.",
	}, s.handleSearch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_service_neighborhood",
		Description: "Finds services related to a given service in the dependency graph: what it calls (downstream) and what would break if it went down (blast radius).",
	}, s.handleServiceNeighborhood)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Reports chunk and service counts and the active embedding model for the currently loaded index.",
	}, s.handleIndexStatus)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	req := retrieval.QueryRequest{
		Query:       input.Query,
		TopK:        limit,
		Rerank:      input.Rerank,
		ExpandGraph: input.ExpandGraph,
		GraphDepth:  1,
		Filters: retrieval.Filters{
			CorpusTypes: parseCorpusTypes(input.CorpusTypes),
			ServiceName: input.Service,
			RepoName:    input.Repo,
		},
	}

	result, err := s.pipeline.Query(ctx, req)
	if err != nil {
		s.logger.Error("search failed", slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	return nil, toSearchOutput(result), nil
}

func (s *Server) handleServiceNeighborhood(_ context.Context, _ *mcp.CallToolRequest, input ServiceNeighborhoodInput) (
	*mcp.CallToolResult, ServiceNeighborhoodOutput, error,
) {
	if input.Service == "" {
		return nil, ServiceNeighborhoodOutput{}, NewInvalidParamsError("service parameter is required")
	}
	if s.graph == nil {
		return nil, ServiceNeighborhoodOutput{}, NewInvalidParamsError("no service graph is loaded for this index")
	}

	depth := input.Depth
	if depth <= 0 {
		depth = 1
	}

	n := s.graph.GetNeighborhood(input.Service, depth)
	out := ServiceNeighborhoodOutput{
		Service:                n.Service,
		CalledBy:               n.CalledBy,
		Calls:                  n.Calls,
		ExtendedNeighbors:      n.ExtendedNeighbors,
		DownstreamDependencies: s.graph.DownstreamDependencies(input.Service, depth),
	}
	for _, e := range n.Edges {
		out.Edges = append(out.Edges, EdgeOutput{
			Source:           e.Source,
			Target:           e.Target,
			EdgeType:         string(e.EdgeType),
			EvidenceChunkIDs: e.EvidenceChunkIDs,
		})
	}
	return nil, out, nil
}

func (s *Server) handleIndexStatus(_ context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult, IndexStatusOutput, error,
) {
	out := IndexStatusOutput{
		DataDir:    s.dataDir,
		ChunkCount: s.indexer.Len(),
	}
	if s.graph != nil {
		out.ServiceCount = s.graph.NodeCount()
	}
	if s.embedder != nil {
		out.EmbeddingModel = s.embedder.ModelName()
		out.EmbeddingDims = s.embedder.Dimensions()
	}
	return nil, out, nil
}

// Serve starts the server over stdio, the only transport knowgraph
// exposes: the MCP go-sdk's SSE transport is not wired up here, since
// every retrieved MCP client in the pack talks stdio.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped gracefully")
	return nil
}

func parseCorpusTypes(raw []string) []types.CorpusType {
	if len(raw) == 0 {
		return nil
	}
	out := make([]types.CorpusType, 0, len(raw))
	for _, r := range raw {
		out = append(out, types.CorpusType(r))
	}
	return out
}
