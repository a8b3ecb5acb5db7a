// Package link resolves detected ServiceCall sites into ServiceRelation
// edges against the route registry. HTTP calls are matched by path and
// method; non-HTTP calls (gRPC, queue publish/subscribe) have no path
// to match against, so a successfully-resolved target service gets a
// synthetic relation against its first registered route. Every miss is
// typed, never an error.
package link

import (
	"strings"

	"github.com/strataforge/knowgraph/internal/route"
	"github.com/strataforge/knowgraph/internal/types"
)

// Linker binds ServiceCalls to routes via a route store; either the
// in-memory registry or the SQLite-backed one works.
type Linker struct {
	registry route.Store
}

// NewLinker builds a Linker against the given route store.
func NewLinker(registry route.Store) *Linker {
	return &Linker{registry: registry}
}

// LinkResult is the outcome of resolving one ServiceCall: exactly one
// of Relation or Miss is populated.
type LinkResult struct {
	Relation *types.ServiceRelation
	Miss     *types.LinkMiss
}

// Link resolves a single ServiceCall.
func (l *Linker) Link(call types.ServiceCall) LinkResult {
	routes := l.registry.GetRoutes(call.TargetService)
	if len(routes) == 0 {
		return LinkResult{Miss: &types.LinkMiss{Call: call, Reason: types.MissNoRoutes}}
	}

	if call.CallType != types.CallHTTP {
		// No path to resolve against: the service's first registered
		// route stands in as the representative target.
		target := routes[0]
		return LinkResult{Relation: &types.ServiceRelation{
			SourceFile:     call.SourceFile,
			SourceLine:     call.LineNumber,
			TargetFile:     target.HandlerFile,
			TargetFunction: target.HandlerFunction,
			TargetLine:     target.LineNumber,
			RelationType:   types.RelationSynthetic,
			RoutePath:      target.Path,
		}}
	}

	method := call.Method
	if method == "" {
		method = "GET"
	}
	urlPath := call.URLPath
	if urlPath == "" {
		urlPath = "/"
	}
	match := l.registry.FindRouteByRequest(call.TargetService, method, urlPath)
	if !match.Found {
		reason := types.MissPathMismatch
		if !anyMethodMatches(routes, method) {
			reason = types.MissMethodMismatch
		}
		return LinkResult{Miss: &types.LinkMiss{Call: call, Reason: reason}}
	}

	return LinkResult{Relation: &types.ServiceRelation{
		SourceFile:     call.SourceFile,
		SourceLine:     call.LineNumber,
		TargetFile:     match.Route.HandlerFile,
		TargetFunction: match.Route.HandlerFunction,
		TargetLine:     match.Route.LineNumber,
		RelationType:   types.RelationHTTP,
		RoutePath:      match.Route.Path,
	}}
}

// LinkAll resolves every call, splitting results into relations and
// misses.
func (l *Linker) LinkAll(calls []types.ServiceCall) (relations []types.ServiceRelation, misses []types.LinkMiss) {
	for _, call := range calls {
		result := l.Link(call)
		if result.Relation != nil {
			relations = append(relations, *result.Relation)
		}
		if result.Miss != nil {
			misses = append(misses, *result.Miss)
		}
	}
	return relations, misses
}

func anyMethodMatches(routes []types.RouteDefinition, method string) bool {
	for _, r := range routes {
		if strings.EqualFold(r.Method, method) {
			return true
		}
	}
	return false
}
