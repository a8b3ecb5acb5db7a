package route

import (
	"path/filepath"
	"testing"

	"github.com/strataforge/knowgraph/internal/types"
)

func openTestRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()
	r, err := OpenSQLiteRegistry(filepath.Join(t.TempDir(), "routes.db"))
	if err != nil {
		t.Fatalf("OpenSQLiteRegistry: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRegistryRoundTrip(t *testing.T) {
	r := openTestRegistry(t)
	r.AddRoutes("user-service", []types.RouteDefinition{
		route("GET", "/api/users", "list_users"),
		route("POST", "/api/users", "create_user"),
	})

	got := r.GetRoutes("user-service")
	if len(got) != 2 {
		t.Fatalf("GetRoutes = %d routes, want 2: %+v", len(got), got)
	}
	if got[0].HandlerFunction != "list_users" || got[1].HandlerFunction != "create_user" {
		t.Fatalf("insertion order not preserved: %+v", got)
	}
	if got[0].Service != "user-service" {
		t.Fatalf("service not carried: %+v", got[0])
	}
}

func TestSQLiteRegistryUnknownServiceEmpty(t *testing.T) {
	r := openTestRegistry(t)
	if got := r.GetRoutes("ghost"); len(got) != 0 {
		t.Fatalf("GetRoutes on unknown service = %v, want empty", got)
	}
}

func TestSQLiteRegistryAddRoutesReplaces(t *testing.T) {
	r := openTestRegistry(t)
	r.AddRoutes("user-service", []types.RouteDefinition{route("GET", "/api/users", "list_users")})
	r.AddRoutes("user-service", []types.RouteDefinition{route("GET", "/api/users/{id}", "get_user")})

	got := r.GetRoutes("user-service")
	if len(got) != 1 || got[0].HandlerFunction != "get_user" {
		t.Fatalf("AddRoutes should replace wholesale, got %+v", got)
	}
}

func TestSQLiteRegistryFindRouteByRequest(t *testing.T) {
	r := openTestRegistry(t)
	r.AddRoutes("user-service", []types.RouteDefinition{
		route("GET", "/api/users/{id}", "get_user"),
		route("GET", "/api/users/me", "get_current_user"),
	})

	res := r.FindRouteByRequest("user-service", "GET", "/api/users/me")
	if !res.Found || res.Route.HandlerFunction != "get_current_user" {
		t.Fatalf("literal route should win: %+v", res.Route)
	}

	res = r.FindRouteByRequest("user-service", "GET", "/api/users/123?expand=true")
	if !res.Found || res.Route.HandlerFunction != "get_user" {
		t.Fatalf("param route should match with query string: %+v", res.Route)
	}
}

func TestSQLiteRegistryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.db")

	r, err := OpenSQLiteRegistry(path)
	if err != nil {
		t.Fatalf("OpenSQLiteRegistry: %v", err)
	}
	r.AddRoutes("billing", []types.RouteDefinition{{
		Service: "billing", Method: "POST", Path: "/api/invoices",
		HandlerFile: "billing/api.py", HandlerFunction: "create_invoice", LineNumber: 42,
	}})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSQLiteRegistry(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got := reopened.GetRoutes("billing")
	if len(got) != 1 {
		t.Fatalf("routes did not survive reopen: %+v", got)
	}
	if got[0].HandlerFile != "billing/api.py" || got[0].LineNumber != 42 {
		t.Fatalf("handler fields lost on reopen: %+v", got[0])
	}
}

func TestSQLiteRegistryUniquenessConstraint(t *testing.T) {
	r := openTestRegistry(t)
	// Duplicate (service, method, path) in one batch collapses to one row.
	r.AddRoutes("user-service", []types.RouteDefinition{
		route("GET", "/api/users", "list_users"),
		route("GET", "/api/users", "list_users_v2"),
	})

	got := r.GetRoutes("user-service")
	if len(got) != 1 {
		t.Fatalf("uniqueness constraint not enforced: %+v", got)
	}
}

func TestSQLiteRegistryClearAndAllServices(t *testing.T) {
	r := openTestRegistry(t)
	r.AddRoutes("a-svc", []types.RouteDefinition{route("GET", "/a", "ha")})
	r.AddRoutes("b-svc", []types.RouteDefinition{route("GET", "/b", "hb")})

	services := r.AllServices()
	if len(services) != 2 {
		t.Fatalf("AllServices = %v, want 2 entries", services)
	}

	r.Clear("a-svc")
	if len(r.GetRoutes("a-svc")) != 0 {
		t.Fatal("Clear(service) left routes behind")
	}
	if len(r.GetRoutes("b-svc")) != 1 {
		t.Fatal("Clear(service) must not touch other services")
	}

	r.Clear()
	if len(r.AllServices()) != 0 {
		t.Fatal("Clear() should empty the registry")
	}
}
