package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the search query to execute"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	CorpusTypes []string `json:"corpus_types,omitempty" jsonschema:"restrict to these corpus types, e.g. CODE_LOGIC, DOC_README"`
	Service     string   `json:"service,omitempty" jsonschema:"restrict to chunks belonging to this service"`
	Repo        string   `json:"repo,omitempty" jsonschema:"restrict to chunks belonging to this repo"`
	Rerank      bool     `json:"rerank,omitempty" jsonschema:"apply cross-encoder rerank to fused results"`
	ExpandGraph bool     `json:"expand_graph,omitempty" jsonschema:"include related services from the service dependency graph"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results          []SearchResultOutput `json:"results" jsonschema:"list of search results"`
	RelatedServices  []string             `json:"related_services,omitempty" jsonschema:"services found via graph expansion, if requested"`
}

// SearchResultOutput is a single scored chunk with context-rich metadata
// explaining why it matched.
type SearchResultOutput struct {
	SourceURI   string  `json:"source_uri" jsonschema:"the source the chunk was extracted from"`
	CorpusType  string  `json:"corpus_type" jsonschema:"the corpus type of the chunk, e.g. CODE_LOGIC"`
	Content     string  `json:"content" jsonschema:"the chunk's (scrubbed) text"`
	Score       float64 `json:"score" jsonschema:"fused relevance score after rerank, freshness, and boosts"`
	Symbol      string  `json:"symbol,omitempty" jsonschema:"primary symbol name, for code chunks"`
	Service     string  `json:"service,omitempty" jsonschema:"owning service name, if known"`
	FromDense   bool    `json:"from_dense" jsonschema:"true if this chunk was found by vector search"`
	FromBM25    bool    `json:"from_bm25" jsonschema:"true if this chunk was found by keyword search"`
	Reranked    bool    `json:"reranked" jsonschema:"true if a cross-encoder rerank adjusted this chunk's score"`
}

// ServiceNeighborhoodInput defines the input schema for the
// get_service_neighborhood tool.
type ServiceNeighborhoodInput struct {
	Service string `json:"service" jsonschema:"the service name to expand from"`
	Depth   int    `json:"depth,omitempty" jsonschema:"how many hops of the dependency graph to traverse, default 1"`
}

// EdgeOutput is one dependency edge in a neighborhood answer.
type EdgeOutput struct {
	Source           string   `json:"source"`
	Target           string   `json:"target"`
	EdgeType         string   `json:"edge_type" jsonschema:"http, grpc, queue, or db"`
	EvidenceChunkIDs []string `json:"evidence_chunk_ids,omitempty" jsonschema:"chunks whose call sites produced this edge"`
}

// ServiceNeighborhoodOutput defines the output schema for the
// get_service_neighborhood tool.
type ServiceNeighborhoodOutput struct {
	Service                string       `json:"service"`
	CalledBy               []string     `json:"called_by" jsonschema:"services that call this one directly"`
	Calls                  []string     `json:"calls" jsonschema:"services this one calls directly"`
	Edges                  []EdgeOutput `json:"edges" jsonschema:"the dependency edges touching this service, with evidence"`
	ExtendedNeighbors      []string     `json:"extended_neighbors,omitempty" jsonschema:"services reachable beyond one hop, when depth > 1"`
	DownstreamDependencies []string     `json:"downstream_dependencies" jsonschema:"services this service calls, directly or through up to depth hops"`
}

// IndexStatusInput defines the input schema for the index_status tool
// (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput reports on the currently loaded index.
type IndexStatusOutput struct {
	DataDir         string `json:"data_dir"`
	ChunkCount      int    `json:"chunk_count"`
	ServiceCount    int    `json:"service_count"`
	EmbeddingModel  string `json:"embedding_model"`
	EmbeddingDims   int    `json:"embedding_dimensions"`
}
