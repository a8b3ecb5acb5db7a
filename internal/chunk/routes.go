package chunk

import (
	"regexp"
	"strings"

	"github.com/strataforge/knowgraph/internal/types"
)

// RouteExtractor finds framework route registrations in source text and
// emits RouteDefinitions. Each supported framework is matched with its
// own pattern; an empty `methods` kwarg on a Flask route defaults to
// GET.
type RouteExtractor struct{}

// NewRouteExtractor builds a RouteExtractor.
func NewRouteExtractor() *RouteExtractor {
	return &RouteExtractor{}
}

var flaskRoutePattern = regexp.MustCompile(
	`@app\.route\s*\(\s*` + "([\"'])" + `([^"']+)` + "([\"'])" + `\s*(?:,\s*methods\s*=\s*\[([^\]]*)\])?\s*\)\s*\n\s*(?:async\s+)?def\s+(\w+)`,
)

var fastAPIRoutePattern = regexp.MustCompile(
	`(?i)@(?:app|router)\.(get|post|put|delete|patch)\s*\(\s*` + "([\"'])" + `([^"']+)` + "([\"'])" + `[^)]*\)\s*\n\s*(?:async\s+)?def\s+(\w+)`,
)

// expressRoutePattern matches Express's lowercase verb methods only, so
// a Gin `router.GET(...)` registration is left to ginRoutePattern.
var expressRoutePattern = regexp.MustCompile(
	`\b(?:app|router)\.(get|post|put|delete|patch)\s*\(\s*` + "([\"'`])" + `([^"'` + "`" + `]+)` + "([\"'`])" + `\s*,\s*(\w+)`,
)

var ginRoutePattern = regexp.MustCompile(
	`\brouter\.(GET|POST|PUT|DELETE|PATCH)\s*\(\s*` + "([\"'])" + `([^"']+)` + "([\"'])" + `\s*,\s*(\w+)`,
)

var aspNetAttrPattern = regexp.MustCompile(
	`(?i)\[Http(Get|Post|Put|Delete|Patch)\s*(?:\(\s*` + "([\"'])" + `([^"']*)` + "([\"'])" + `\s*\))?\]\s*\n\s*(?:public\s+)?(?:async\s+)?\S+\s+(\w+)\s*\(`,
)

// Extract returns every RouteDefinition found in text for the given
// service and handler file. LineNumber is 1-indexed, relative to text.
func (e *RouteExtractor) Extract(service, handlerFile, text string) []types.RouteDefinition {
	var routes []types.RouteDefinition

	for _, m := range flaskRoutePattern.FindAllStringSubmatchIndex(text, -1) {
		groups := extractGroups(text, m)
		path := groups[1]
		methods := flaskMethods(groups[3])
		handler := groups[4]
		line := lineNumberAt(text, m[0])
		for _, method := range methods {
			routes = append(routes, types.RouteDefinition{
				Service:         service,
				Method:          method,
				Path:            path,
				HandlerFile:     handlerFile,
				HandlerFunction: handler,
				LineNumber:      line,
			})
		}
	}

	for _, m := range fastAPIRoutePattern.FindAllStringSubmatchIndex(text, -1) {
		groups := extractGroups(text, m)
		method := strings.ToUpper(groups[0])
		path := groups[2]
		handler := groups[4]
		line := lineNumberAt(text, m[0])
		routes = append(routes, types.RouteDefinition{
			Service: service, Method: method, Path: path,
			HandlerFile: handlerFile, HandlerFunction: handler, LineNumber: line,
		})
	}

	for _, m := range expressRoutePattern.FindAllStringSubmatchIndex(text, -1) {
		groups := extractGroups(text, m)
		method := strings.ToUpper(groups[0])
		path := groups[2]
		handler := groups[4]
		line := lineNumberAt(text, m[0])
		routes = append(routes, types.RouteDefinition{
			Service: service, Method: method, Path: path,
			HandlerFile: handlerFile, HandlerFunction: handler, LineNumber: line,
		})
	}

	for _, m := range ginRoutePattern.FindAllStringSubmatchIndex(text, -1) {
		groups := extractGroups(text, m)
		method := strings.ToUpper(groups[0])
		path := groups[2]
		handler := groups[4]
		line := lineNumberAt(text, m[0])
		routes = append(routes, types.RouteDefinition{
			Service: service, Method: method, Path: path,
			HandlerFile: handlerFile, HandlerFunction: handler, LineNumber: line,
		})
	}

	for _, m := range aspNetAttrPattern.FindAllStringSubmatchIndex(text, -1) {
		groups := extractGroups(text, m)
		method := strings.ToUpper(groups[0])
		path := groups[2]
		if path == "" {
			path = "/"
		}
		handler := groups[4]
		line := lineNumberAt(text, m[0])
		routes = append(routes, types.RouteDefinition{
			Service: service, Method: method, Path: path,
			HandlerFile: handlerFile, HandlerFunction: handler, LineNumber: line,
		})
	}

	return routes
}

// flaskMethods parses a Flask `methods=[...]` kwarg body, defaulting to
// GET when absent.
func flaskMethods(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"GET"}
	}
	parts := strings.Split(raw, ",")
	methods := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			methods = append(methods, strings.ToUpper(p))
		}
	}
	if len(methods) == 0 {
		return []string{"GET"}
	}
	return methods
}

// extractGroups pulls capture-group text out of a FindAllStringSubmatchIndex
// match, skipping the implicit group 0 (whole match) and returning every
// other group in declaration order, quote delimiter groups included; an
// unmatched optional group yields "". Callers index past the quote groups
// (e.g. groups[2] is the path after a method and an opening quote).
func extractGroups(text string, m []int) []string {
	var out []string
	for i := 2; i+1 < len(m); i += 2 {
		if m[i] < 0 {
			out = append(out, "")
			continue
		}
		out = append(out, text[m[i]:m[i+1]])
	}
	return out
}

// lineNumberAt returns the 1-indexed line number containing byte offset
// pos in text.
func lineNumberAt(text string, pos int) int {
	line := 1
	for i := 0; i < pos && i < len(text); i++ {
		if text[i] == '\n' {
			line++
		}
	}
	return line
}
