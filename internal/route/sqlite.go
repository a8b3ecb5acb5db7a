package route

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/strataforge/knowgraph/internal/types"
)

// SQLiteRegistry is the persistent route table: a single routes table
// with a (service, method, path) uniqueness constraint and an index on
// service. WAL mode keeps concurrent readers alive while the route
// extractor replaces a service's rows.
//
// The contract matches the in-memory Registry exactly; mutation
// methods log and drop failed statements rather than returning errors,
// since the Store interface models a registry that never fails reads.
type SQLiteRegistry struct {
	mu sync.RWMutex
	db *sql.DB
}

var _ Store = (*SQLiteRegistry)(nil)

const routesSchema = `
CREATE TABLE IF NOT EXISTS routes (
	service          TEXT NOT NULL,
	method           TEXT NOT NULL,
	path             TEXT NOT NULL,
	handler_file     TEXT NOT NULL DEFAULT '',
	handler_function TEXT NOT NULL DEFAULT '',
	line_number      INTEGER NOT NULL DEFAULT 0,
	UNIQUE(service, method, path)
);
CREATE INDEX IF NOT EXISTS idx_routes_service ON routes(service);
`

// OpenSQLiteRegistry opens (or creates) the registry database at path.
func OpenSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(routesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create routes schema: %w", err)
	}

	return &SQLiteRegistry{db: db}, nil
}

// AddRoutes replaces the service's routes atomically inside one
// transaction, preserving the slice order as insertion order.
func (r *SQLiteRegistry) AddRoutes(service string, routes []types.RouteDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		slog.Warn("route_registry_tx_failed", slog.String("service", service), slog.String("error", err.Error()))
		return
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM routes WHERE service = ?", service); err != nil {
		slog.Warn("route_registry_delete_failed", slog.String("service", service), slog.String("error", err.Error()))
		return
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO routes
		(service, method, path, handler_file, handler_function, line_number)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		slog.Warn("route_registry_prepare_failed", slog.String("error", err.Error()))
		return
	}
	defer stmt.Close()

	for _, rt := range routes {
		if _, err := stmt.Exec(service, rt.Method, rt.Path, rt.HandlerFile, rt.HandlerFunction, rt.LineNumber); err != nil {
			slog.Warn("route_registry_insert_failed",
				slog.String("service", service),
				slog.String("path", rt.Path),
				slog.String("error", err.Error()))
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Warn("route_registry_commit_failed", slog.String("service", service), slog.String("error", err.Error()))
	}
}

// GetRoutes returns the service's routes in insertion order; unknown
// services yield an empty slice.
func (r *SQLiteRegistry) GetRoutes(service string) []types.RouteDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getRoutesLocked(service)
}

func (r *SQLiteRegistry) getRoutesLocked(service string) []types.RouteDefinition {
	rows, err := r.db.Query(`SELECT method, path, handler_file, handler_function, line_number
		FROM routes WHERE service = ? ORDER BY rowid`, service)
	if err != nil {
		slog.Warn("route_registry_query_failed", slog.String("service", service), slog.String("error", err.Error()))
		return []types.RouteDefinition{}
	}
	defer rows.Close()

	routes := []types.RouteDefinition{}
	for rows.Next() {
		rt := types.RouteDefinition{Service: service}
		if err := rows.Scan(&rt.Method, &rt.Path, &rt.HandlerFile, &rt.HandlerFunction, &rt.LineNumber); err != nil {
			slog.Warn("route_registry_scan_failed", slog.String("error", err.Error()))
			continue
		}
		routes = append(routes, rt)
	}
	return routes
}

// FindRouteByRequest resolves (method, rawPath) with the same
// longest-literal-prefix matcher the in-memory Registry uses.
func (r *SQLiteRegistry) FindRouteByRequest(service, method, rawPath string) MatchResult {
	r.mu.RLock()
	candidates := r.getRoutesLocked(service)
	r.mu.RUnlock()
	return findBestRoute(candidates, method, rawPath)
}

// AllServices returns every service with at least one registered route.
func (r *SQLiteRegistry) AllServices() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.Query("SELECT DISTINCT service FROM routes ORDER BY service")
	if err != nil {
		slog.Warn("route_registry_services_failed", slog.String("error", err.Error()))
		return nil
	}
	defer rows.Close()

	var services []string
	for rows.Next() {
		var svc string
		if err := rows.Scan(&svc); err != nil {
			continue
		}
		services = append(services, svc)
	}
	return services
}

// Clear removes the named services' routes, or the whole table when
// called with no arguments.
func (r *SQLiteRegistry) Clear(services ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(services) == 0 {
		if _, err := r.db.Exec("DELETE FROM routes"); err != nil {
			slog.Warn("route_registry_clear_failed", slog.String("error", err.Error()))
		}
		return
	}
	for _, svc := range services {
		if _, err := r.db.Exec("DELETE FROM routes WHERE service = ?", svc); err != nil {
			slog.Warn("route_registry_clear_failed", slog.String("service", svc), slog.String("error", err.Error()))
		}
	}
}

// Close closes the underlying database.
func (r *SQLiteRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}
