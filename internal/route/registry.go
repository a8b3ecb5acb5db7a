// Package route holds the route registry: the set of
// framework-registered method+path -> handler mappings discovered by
// the chunker's route extractor, keyed by service, and resolved against
// incoming (method, path) pairs by longest-literal-prefix match. Two
// implementations share the contract: the in-memory Registry and the
// SQLite-backed SQLiteRegistry.
package route

import (
	"strings"
	"sync"

	"github.com/strataforge/knowgraph/internal/types"
)

// Store is the registry contract shared by the in-memory and
// SQLite-backed implementations. GetRoutes returns an empty slice for
// unknown services, never an error.
type Store interface {
	AddRoutes(service string, routes []types.RouteDefinition)
	GetRoutes(service string) []types.RouteDefinition
	FindRouteByRequest(service, method, rawPath string) MatchResult
	AllServices() []string
	Clear(services ...string)
}

// Registry is a concurrency-safe, in-memory route table. It never
// persists to disk: the retrieval corpus is the source of truth, and
// the indexer's Finalize rebuilds it from a full re-scan.
type Registry struct {
	mu     sync.RWMutex
	routes map[string][]types.RouteDefinition // service -> routes
}

var _ Store = (*Registry)(nil)

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{routes: make(map[string][]types.RouteDefinition)}
}

// AddRoutes replaces the full set of routes registered for a service
// atomically: a re-extraction of the same service overwrites its prior
// routes rather than accumulating duplicates.
func (r *Registry) AddRoutes(service string, routes []types.RouteDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(routes) == 0 {
		delete(r.routes, service)
		return
	}
	r.routes[service] = append([]types.RouteDefinition(nil), routes...)
}

// GetRoutes returns every route registered for a service.
func (r *Registry) GetRoutes(service string) []types.RouteDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.RouteDefinition(nil), r.routes[service]...)
}

// AllServices returns every service name with at least one registered
// route.
func (r *Registry) AllServices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.routes))
	for svc := range r.routes {
		out = append(out, svc)
	}
	return out
}

// Clear removes the named services' routes, or every route when called
// with no arguments. Used before a full rebuild.
func (r *Registry) Clear(services ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(services) == 0 {
		r.routes = make(map[string][]types.RouteDefinition)
		return
	}
	for _, svc := range services {
		delete(r.routes, svc)
	}
}

// MatchResult is the outcome of FindRouteByRequest.
type MatchResult struct {
	Route types.RouteDefinition
	Found bool
}

// FindRouteByRequest resolves (method, rawPath) for a service to its
// best-matching route by longest-literal-prefix match: segment count
// must match exactly, a "{param}" segment matches any single non-empty
// path segment, and ties are broken by literal-segment-count, then
// total-segment-count, then insertion order.
func (r *Registry) FindRouteByRequest(service, method, rawPath string) MatchResult {
	r.mu.RLock()
	candidates := r.routes[service]
	r.mu.RUnlock()
	return findBestRoute(candidates, method, rawPath)
}

// findBestRoute runs the longest-literal-prefix match over an
// insertion-ordered candidate list. Shared by both registry
// implementations. Ties on literal count resolve to the earlier
// candidate, which falls out of only overwriting best on a strictly
// higher count.
func findBestRoute(candidates []types.RouteDefinition, method, rawPath string) MatchResult {
	requestSegments := splitPath(NormalizePath(rawPath))

	var best types.RouteDefinition
	bestLiteral := -1
	found := false

	for _, route := range candidates {
		if !strings.EqualFold(route.Method, method) {
			continue
		}
		routeSegments := splitPath(NormalizePath(route.Path))
		if len(routeSegments) != len(requestSegments) {
			continue
		}
		literalCount, ok := matchSegments(routeSegments, requestSegments)
		if !ok {
			continue
		}
		if !found || literalCount > bestLiteral {
			best, bestLiteral, found = route, literalCount, true
		}
	}

	return MatchResult{Route: best, Found: found}
}

// matchSegments reports whether every request segment matches its
// corresponding route segment (literal equality or a "{param}"
// wildcard matching any non-empty segment), and returns the count of
// literal (non-wildcard) segments that matched.
func matchSegments(routeSegments, requestSegments []string) (literalCount int, ok bool) {
	for i, rs := range routeSegments {
		qs := requestSegments[i]
		if isParamSegment(rs) {
			if qs == "" {
				return 0, false
			}
			continue
		}
		if rs != qs {
			return 0, false
		}
		literalCount++
	}
	return literalCount, true
}

func isParamSegment(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}

// NormalizePath strips a query string and one trailing slash (unless
// the result would be empty). Stored route paths are kept verbatim;
// only matching normalizes.
func NormalizePath(path string) string {
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return []string{""}
	}
	return strings.Split(trimmed, "/")
}
