package mcp

import (
	"github.com/strataforge/knowgraph/internal/retrieval"
)

// toSearchOutput converts a pipeline query result into the MCP tool's
// output schema.
func toSearchOutput(result *retrieval.QueryResult) SearchOutput {
	out := SearchOutput{
		Results:         make([]SearchResultOutput, 0, len(result.Chunks)),
		RelatedServices: result.RelatedServices(),
	}
	for _, sc := range result.Chunks {
		c := sc.Chunk
		out.Results = append(out.Results, SearchResultOutput{
			SourceURI:  c.SourceURI,
			CorpusType: string(c.SourceType.CorpusType),
			Content:    c.Text,
			Score:      sc.Score,
			Symbol:     c.Metadata.SymbolName,
			Service:    c.Metadata.ServiceName,
			FromDense:  sc.FromDense,
			FromBM25:   sc.FromBM25,
			Reranked:   sc.Reranked,
		})
	}
	return out
}
