package link

import (
	"testing"

	"github.com/strataforge/knowgraph/internal/route"
	"github.com/strataforge/knowgraph/internal/types"
)

func TestLinkNoRoutesMiss(t *testing.T) {
	l := NewLinker(route.NewRegistry())
	result := l.Link(types.ServiceCall{TargetService: "unknown-service", CallType: types.CallHTTP})
	if result.Relation != nil || result.Miss == nil {
		t.Fatalf("expected a miss, got %+v", result)
	}
	if result.Miss.Reason != types.MissNoRoutes {
		t.Fatalf("Reason = %v, want no_routes", result.Miss.Reason)
	}
}

func TestLinkHTTPParamRoute(t *testing.T) {
	r := route.NewRegistry()
	r.AddRoutes("user-service", []types.RouteDefinition{
		{Service: "user-service", Method: "GET", Path: "/api/users/{id}", HandlerFile: "users.py", HandlerFunction: "get_user", LineNumber: 42},
	})
	l := NewLinker(r)

	result := l.Link(types.ServiceCall{
		SourceFile: "client.py", TargetService: "user-service", CallType: types.CallHTTP,
		Method: "GET", URLPath: "/api/users/123", LineNumber: 7,
	})
	if result.Relation == nil {
		t.Fatalf("expected a relation, got miss %+v", result.Miss)
	}
	if result.Relation.TargetFunction != "get_user" || result.Relation.RoutePath != "/api/users/{id}" {
		t.Fatalf("unexpected relation: %+v", result.Relation)
	}
	if result.Relation.RelationType != types.RelationHTTP {
		t.Fatalf("RelationType = %v, want http", result.Relation.RelationType)
	}
}

func TestLinkMethodMismatch(t *testing.T) {
	r := route.NewRegistry()
	r.AddRoutes("user-service", []types.RouteDefinition{
		{Service: "user-service", Method: "POST", Path: "/api/users", HandlerFunction: "create_user"},
	})
	l := NewLinker(r)

	result := l.Link(types.ServiceCall{TargetService: "user-service", CallType: types.CallHTTP, Method: "GET", URLPath: "/api/users"})
	if result.Miss == nil || result.Miss.Reason != types.MissMethodMismatch {
		t.Fatalf("expected method_mismatch, got %+v", result)
	}
}

func TestLinkPathMismatch(t *testing.T) {
	r := route.NewRegistry()
	r.AddRoutes("user-service", []types.RouteDefinition{
		{Service: "user-service", Method: "GET", Path: "/api/users", HandlerFunction: "list_users"},
	})
	l := NewLinker(r)

	result := l.Link(types.ServiceCall{TargetService: "user-service", CallType: types.CallHTTP, Method: "GET", URLPath: "/api/orders"})
	if result.Miss == nil || result.Miss.Reason != types.MissPathMismatch {
		t.Fatalf("expected path_mismatch, got %+v", result)
	}
}

func TestLinkDefaultsMethodAndPath(t *testing.T) {
	r := route.NewRegistry()
	r.AddRoutes("user-service", []types.RouteDefinition{
		{Service: "user-service", Method: "GET", Path: "/", HandlerFunction: "root"},
	})
	l := NewLinker(r)

	result := l.Link(types.ServiceCall{TargetService: "user-service", CallType: types.CallHTTP})
	if result.Relation == nil {
		t.Fatalf("expected empty Method/URLPath to default to GET /, got %+v", result.Miss)
	}
}

func TestLinkNonHTTPSynthesizesRelation(t *testing.T) {
	r := route.NewRegistry()
	r.AddRoutes("user-service", []types.RouteDefinition{
		{Service: "user-service", Method: "GET", Path: "/api/users", HandlerFile: "users.py", HandlerFunction: "list_users", LineNumber: 1},
	})
	l := NewLinker(r)

	result := l.Link(types.ServiceCall{TargetService: "user-service", CallType: types.CallQueuePublish})
	if result.Relation == nil {
		t.Fatalf("expected a synthetic relation, got miss %+v", result.Miss)
	}
	if result.Relation.RelationType != types.RelationSynthetic {
		t.Fatalf("RelationType = %v, want synthetic", result.Relation.RelationType)
	}
	if result.Relation.TargetFunction != "list_users" {
		t.Fatalf("expected first route picked as representative, got %+v", result.Relation)
	}
}

func TestLinkAllSplitsRelationsAndMisses(t *testing.T) {
	r := route.NewRegistry()
	r.AddRoutes("svc-a", []types.RouteDefinition{{Service: "svc-a", Method: "GET", Path: "/x", HandlerFunction: "x"}})
	l := NewLinker(r)

	calls := []types.ServiceCall{
		{TargetService: "svc-a", CallType: types.CallHTTP, Method: "GET", URLPath: "/x"},
		{TargetService: "svc-unknown", CallType: types.CallHTTP, Method: "GET", URLPath: "/y"},
	}
	relations, misses := l.LinkAll(calls)
	if len(relations) != 1 || len(misses) != 1 {
		t.Fatalf("LinkAll() = %d relations, %d misses, want 1 and 1", len(relations), len(misses))
	}
}
