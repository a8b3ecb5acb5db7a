// Package graph builds and queries the service dependency graph:
// nodes discovered from deploy-manifest chunks, edges from every
// chunk's resolved outbound calls. A hand-written adjacency list over
// an ordered edge slice; blast-radius and dependency queries are BFS
// walks in one direction or the other.
package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/strataforge/knowgraph/internal/resolver"
	"github.com/strataforge/knowgraph/internal/types"
)

// Graph is a directed multigraph of service dependencies. Edges are
// stored in a slice to preserve discovery order across Save/Load;
// adjacency maps hold indices into that slice for O(1) traversal.
type Graph struct {
	nodes    map[string]*types.ServiceNode
	edges    []types.ServiceEdge
	outIndex map[string][]int
	inIndex  map[string][]int
}

// New builds an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*types.ServiceNode),
		outIndex: make(map[string][]int),
		inIndex:  make(map[string][]int),
	}
}

// Reset discards every node and edge, returning the graph to its
// initial empty state. BuildFromChunks does not call this itself,
// since incremental callers may want to merge rather than replace; a
// full-rebuild caller (e.g. Finalize) should Reset first.
func (g *Graph) Reset() {
	g.nodes = make(map[string]*types.ServiceNode)
	g.edges = nil
	g.outIndex = make(map[string][]int)
	g.inIndex = make(map[string][]int)
}

// BuildFromChunks populates the graph in two phases: first every
// CODE_DEPLOY chunk with a ServiceName contributes (or merges into) a
// node, then every chunk's resolved CallsOut targets contribute edges.
// Targets that the resolver cannot match to a known node are skipped
// (the graph never fabricates a node for an unresolved target); a call
// whose resolved target equals its own source service is also skipped,
// since a self-dependency carries no useful blast-radius information.
func (g *Graph) BuildFromChunks(chunks []*types.CleanChunk) {
	for _, c := range chunks {
		if c.SourceType.CorpusType != types.CorpusCodeDeploy || c.Metadata.ServiceName == "" {
			continue
		}
		g.addOrMergeNode(c)
	}

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	res := resolver.NewResolver(names)

	for _, c := range chunks {
		source := c.Metadata.ServiceName
		if source == "" {
			continue
		}
		for _, rawTarget := range c.Metadata.CallsOut {
			result := res.Resolve(rawTarget)
			if !result.Resolved || result.Service == source {
				continue
			}
			edgeType := InferEdgeType(rawTarget, types.ServiceCall{})
			g.addEdge(source, result.Service, edgeType, c.ID, rawTarget)
		}
	}
}

func (g *Graph) addOrMergeNode(c *types.CleanChunk) {
	name := c.Metadata.ServiceName
	node, ok := g.nodes[name]
	if !ok {
		node = &types.ServiceNode{Name: name}
		g.nodes[name] = node
	}
	if node.RepoName == "" {
		node.RepoName = c.Metadata.RepoName
	}
	if node.Language == "" {
		node.Language = c.Metadata.Language
	}
	if ns, ok := c.Metadata.K8sLabels["namespace"]; ok && node.K8sNamespace == "" {
		node.K8sNamespace = ns
	}
	node.DeployChunkIDs = append(node.DeployChunkIDs, c.ID)
}

// addEdge appends a new edge, or folds evidence into an existing edge
// between the same (source, target, edgeType) triple.
func (g *Graph) addEdge(source, target string, edgeType types.EdgeType, evidenceChunkID, urlPattern string) {
	for _, idx := range g.outIndex[source] {
		e := &g.edges[idx]
		if e.Target == target && e.EdgeType == edgeType {
			e.EvidenceChunkIDs = append(e.EvidenceChunkIDs, evidenceChunkID)
			return
		}
	}
	idx := len(g.edges)
	g.edges = append(g.edges, types.ServiceEdge{
		Source:           source,
		Target:           target,
		EdgeType:         edgeType,
		EvidenceChunkIDs: []string{evidenceChunkID},
		URLPattern:       urlPattern,
	})
	g.outIndex[source] = append(g.outIndex[source], idx)
	g.inIndex[target] = append(g.inIndex[target], idx)
}

// Node returns the node for a service name, if known.
func (g *Graph) Node(name string) (*types.ServiceNode, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Edges returns every edge, in discovery order.
func (g *Graph) Edges() []types.ServiceEdge {
	return append([]types.ServiceEdge(nil), g.edges...)
}

// NodeCount returns how many services the graph knows about.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// NodeNames returns every known service name, in no particular order.
func (g *Graph) NodeNames() []string {
	out := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		out = append(out, name)
	}
	return out
}

// DownstreamDependencies returns every service reachable by following
// outbound edges from service, up to maxDepth hops (0 means
// unbounded).
func (g *Graph) DownstreamDependencies(service string, maxDepth int) []string {
	return g.walk(service, maxDepth, g.outIndex, func(e types.ServiceEdge) string { return e.Target })
}

// BlastRadius returns every service that depends on service, directly
// or transitively, up to maxDepth hops (0 means unbounded): i.e. the
// set impacted if service goes down.
func (g *Graph) BlastRadius(service string, maxDepth int) []string {
	return g.walk(service, maxDepth, g.inIndex, func(e types.ServiceEdge) string { return e.Source })
}

// Neighborhood is the structured answer to "what surrounds this
// service": its immediate callers and callees with the edges carrying
// the evidence, plus — when asked for more than one hop — every
// further service reachable in either direction.
type Neighborhood struct {
	Service  string              `json:"service"`
	CalledBy []string            `json:"called_by"`
	Calls    []string            `json:"calls"`
	Edges    []types.ServiceEdge `json:"edges"`

	// ExtendedNeighbors is populated only for depth > 1: the union of
	// the N-hop transitive neighborhood beyond the immediate one.
	ExtendedNeighbors []string `json:"extended_neighbors,omitempty"`
}

// GetNeighborhood reports service's immediate predecessors, successors,
// and edge records; with depth > 1 the transitive surroundings land
// under ExtendedNeighbors. Unknown services yield an empty
// Neighborhood, not an error.
func (g *Graph) GetNeighborhood(service string, depth int) Neighborhood {
	n := Neighborhood{Service: service}

	var edgeIdxs []int
	seenIn := map[string]struct{}{}
	for _, idx := range g.inIndex[service] {
		e := g.edges[idx]
		if _, ok := seenIn[e.Source]; !ok {
			seenIn[e.Source] = struct{}{}
			n.CalledBy = append(n.CalledBy, e.Source)
		}
		edgeIdxs = append(edgeIdxs, idx)
	}
	seenOut := map[string]struct{}{}
	for _, idx := range g.outIndex[service] {
		e := g.edges[idx]
		if _, ok := seenOut[e.Target]; !ok {
			seenOut[e.Target] = struct{}{}
			n.Calls = append(n.Calls, e.Target)
		}
		edgeIdxs = append(edgeIdxs, idx)
	}

	// Edge records in discovery order, regardless of direction.
	sort.Ints(edgeIdxs)
	for _, idx := range edgeIdxs {
		n.Edges = append(n.Edges, g.edges[idx])
	}

	if depth > 1 {
		immediate := map[string]struct{}{service: {}}
		for _, s := range n.CalledBy {
			immediate[s] = struct{}{}
		}
		for _, s := range n.Calls {
			immediate[s] = struct{}{}
		}
		seen := map[string]struct{}{}
		for _, s := range append(g.DownstreamDependencies(service, depth), g.BlastRadius(service, depth)...) {
			if _, ok := immediate[s]; ok {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			n.ExtendedNeighbors = append(n.ExtendedNeighbors, s)
		}
	}

	return n
}

func (g *Graph) walk(start string, maxDepth int, index map[string][]int, next func(types.ServiceEdge) string) []string {
	visited := map[string]struct{}{start: {}}
	frontier := []string{start}
	var out []string

	depth := 0
	for len(frontier) > 0 {
		if maxDepth > 0 && depth >= maxDepth {
			break
		}
		var nextFrontier []string
		for _, cur := range frontier {
			for _, idx := range index[cur] {
				neighbor := next(g.edges[idx])
				if _, ok := visited[neighbor]; ok {
					continue
				}
				visited[neighbor] = struct{}{}
				out = append(out, neighbor)
				nextFrontier = append(nextFrontier, neighbor)
			}
		}
		frontier = nextFrontier
		depth++
	}
	return out
}

// persisted is the on-disk wire shape: nodes is a map keyed by service
// name (not a list), edges is a plain list preserving insertion order
// exactly, so a load reproduces the graph byte for byte.
type persisted struct {
	Nodes map[string]types.ServiceNode `json:"nodes"`
	Edges []types.ServiceEdge          `json:"edges"`
}

// Save writes the graph as JSON.
func (g *Graph) Save(w io.Writer) error {
	p := persisted{
		Nodes: make(map[string]types.ServiceNode, len(g.nodes)),
		Edges: append([]types.ServiceEdge(nil), g.edges...),
	}
	for name, n := range g.nodes {
		p.Nodes[name] = *n
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// Load replaces the graph's contents from JSON written by Save.
func (g *Graph) Load(r io.Reader) error {
	var p persisted
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return fmt.Errorf("decoding service graph: %w", err)
	}

	g.nodes = make(map[string]*types.ServiceNode, len(p.Nodes))
	for name, n := range p.Nodes {
		node := n
		node.Name = name
		g.nodes[name] = &node
	}

	g.edges = p.Edges
	g.outIndex = make(map[string][]int)
	g.inIndex = make(map[string][]int)
	for i, e := range g.edges {
		g.outIndex[e.Source] = append(g.outIndex[e.Source], i)
		g.inIndex[e.Target] = append(g.inIndex[e.Target], i)
	}
	return nil
}
