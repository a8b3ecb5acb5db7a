package chunk

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/strataforge/knowgraph/internal/types"
)

// CallExtractor finds outbound service-call sites in a chunk's text:
// HTTP client calls, gRPC channel construction, and queue publish/
// subscribe calls. It runs as
// a second pass over the same text the AST chunker already cut, so it
// never needs its own parse.
type CallExtractor struct{}

// NewCallExtractor builds a CallExtractor.
func NewCallExtractor() *CallExtractor {
	return &CallExtractor{}
}

var discardedHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
}

// httpCallPattern matches `<receiver>.<verb>(<first-arg>`. The receiver
// alternation is the catalog of HTTP client objects; the verb
// alternation is the HTTP method set. The first argument may carry a
// Python string prefix (f, r, b, u), so f-string URLs are matched too.
var httpCallPattern = regexp.MustCompile(
	`\b(?i:requests|httpx|session|client|fetch|axios|http|HttpClient)\s*\.\s*(get|post|put|delete|patch|head|options)\s*\(\s*[fFrRbBuU]{0,2}` +
		"([\"'`])" + `([^"'` + "`" + `]*)` + "([\"'`])",
)

// httpGoPattern matches Go's http.Get/Post(url) call style, which puts
// the verb directly on the "http" package selector rather than a client
// receiver, and carries no method argument.
var httpGoPattern = regexp.MustCompile(
	`\bhttp\.(Get|Post|Put|Delete|Patch|Head)\s*\(\s*` + "([\"'`])" + `([^"'` + "`" + `]*)` + "([\"'`])",
)

// interpPattern detects whether a matched literal was actually a
// template/interpolated string (f-string, template literal with `${`,
// or `%s`/`{}`-style formatting placeholders) rather than a pure literal.
var interpPattern = regexp.MustCompile(`\$\{|%[sdv]|\{[a-zA-Z_][a-zA-Z0-9_]*\}`)

var grpcChannelPattern = regexp.MustCompile(
	`\bgrpc\.(?:insecure_channel|secure_channel)\s*\(\s*` + "([\"'`])" + `([^"'` + "`" + `]*)` + "([\"'`])",
)

var celeryPattern = regexp.MustCompile(
	`\bcelery_app\.send_task\s*\(\s*` + "([\"'`])" + `([^"'` + "`" + `]*)` + "([\"'`])",
)

var publishRoutingKeyPattern = regexp.MustCompile(
	`\b(?:producer\.publish|channel\.basic_publish)\s*\([^)]*routing_key\s*=\s*` + "([\"'`])" + `([^"'` + "`" + `]*)` + "([\"'`])",
)

// commentLinePattern recognizes a line that is entirely a line comment,
// so call sites inside it are never matched.
var commentLinePattern = regexp.MustCompile(`^\s*(//|#)`)

// Extract returns every ServiceCall found in text, with LineNumber
// relative to the start of text (1-indexed) and SourceFile set to
// sourceURI. It also returns the deduplicated set of raw target-service
// names, for Metadata.CallsOut.
func (e *CallExtractor) Extract(sourceURI, text string) ([]types.ServiceCall, []string) {
	lines := splitKeepOffsets(text)

	var calls []types.ServiceCall
	seenTargets := map[string]struct{}{}
	var targets []string

	addTarget := func(t string) {
		if t == "" {
			return
		}
		if _, ok := seenTargets[t]; ok {
			return
		}
		seenTargets[t] = struct{}{}
		targets = append(targets, t)
	}

	for lineIdx, line := range lines {
		if isCommentOrDocstring(lines, lineIdx) {
			continue
		}
		lineNo := lineIdx + 1

		for _, m := range httpCallPattern.FindAllStringSubmatch(line, -1) {
			verb := strings.ToUpper(m[1])
			url := m[3]
			call, ok := callFromURL(sourceURI, lineNo, verb, url)
			if !ok {
				continue
			}
			calls = append(calls, call)
			addTarget(call.TargetService)
		}

		for _, m := range httpGoPattern.FindAllStringSubmatch(line, -1) {
			verb := strings.ToUpper(m[1])
			url := m[3]
			call, ok := callFromURL(sourceURI, lineNo, verb, url)
			if !ok {
				continue
			}
			calls = append(calls, call)
			addTarget(call.TargetService)
		}

		for _, m := range grpcChannelPattern.FindAllStringSubmatch(line, -1) {
			target := m[2]
			host := strings.Split(target, ":")[0]
			svc := strings.Split(host, ".")[0]
			if svc == "" {
				continue
			}
			calls = append(calls, types.ServiceCall{
				SourceFile:    sourceURI,
				TargetService: svc,
				CallType:      types.CallGRPC,
				LineNumber:    lineNo,
				Confidence:    confidenceFor(target),
				TargetHost:    host,
			})
			addTarget(svc)
		}

		for _, m := range celeryPattern.FindAllStringSubmatch(line, -1) {
			task := m[2]
			svc := celeryServiceName(task)
			if svc == "" {
				continue
			}
			calls = append(calls, types.ServiceCall{
				SourceFile:    sourceURI,
				TargetService: svc,
				CallType:      types.CallQueuePublish,
				LineNumber:    lineNo,
				Confidence:    types.ConfidenceHigh,
			})
			addTarget(svc)
		}

		for _, m := range publishRoutingKeyPattern.FindAllStringSubmatch(line, -1) {
			routingKey := m[2]
			svc := strings.Split(routingKey, ".")[0]
			if svc == "" {
				continue
			}
			calls = append(calls, types.ServiceCall{
				SourceFile:    sourceURI,
				TargetService: svc,
				CallType:      types.CallQueuePublish,
				LineNumber:    lineNo,
				Confidence:    confidenceFor(routingKey),
			})
			addTarget(svc)
		}
	}

	return calls, targets
}

// callFromURL builds a ServiceCall from a matched URL literal, or
// reports ok=false when the host is one of the discarded loopback
// hostnames.
func callFromURL(sourceURI string, lineNo int, method, rawURL string) (types.ServiceCall, bool) {
	host, path := splitURLHostPath(rawURL)
	if host == "" {
		return types.ServiceCall{}, false
	}
	if _, discard := discardedHosts[strings.ToLower(strings.Split(host, ":")[0])]; discard {
		return types.ServiceCall{}, false
	}
	return types.ServiceCall{
		SourceFile:    sourceURI,
		TargetService: strings.Split(host, ":")[0],
		CallType:      types.CallHTTP,
		LineNumber:    lineNo,
		Confidence:    confidenceFor(rawURL),
		Method:        method,
		URLPath:       path,
		TargetHost:    host,
	}, true
}

// splitURLHostPath pulls host and path out of a (possibly schemeless)
// URL-shaped literal, e.g. "http://user-service/api/users" or
// "user-service/api/users".
func splitURLHostPath(raw string) (host, path string) {
	rest := raw
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	if rest == "" {
		return "", ""
	}
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return rest, "/"
	}
	return rest[:slash], rest[slash:]
}

// confidenceFor classifies a matched literal as HIGH (pure literal) or
// MEDIUM (interpolated/templated).
func confidenceFor(raw string) float64 {
	if interpPattern.MatchString(raw) {
		return types.ConfidenceMed
	}
	return types.ConfidenceHigh
}

// celeryServiceName derives the target service from a Celery task name
// like "user-service.tasks.create_user": the first dotted segment, with
// underscores turned into hyphens.
func celeryServiceName(task string) string {
	parts := strings.SplitN(task, ".", 2)
	if len(parts) == 0 || parts[0] == "" {
		return ""
	}
	return strings.ReplaceAll(parts[0], "_", "-")
}

// splitKeepOffsets splits text into lines, preserving line-terminator
// semantics for the docstring/comment heuristics below.
func splitKeepOffsets(text string) []string {
	return strings.Split(text, "\n")
}

// isCommentOrDocstring reports whether lines[i] sits entirely inside a
// line comment or a triple-quoted Python docstring. This is a
// line-oriented approximation of walking AST parents for comment
// nodes, which avoids needing per-language comment-node types here.
func isCommentOrDocstring(lines []string, i int) bool {
	if commentLinePattern.MatchString(lines[i]) {
		return true
	}
	tripleQuotes := 0
	for j := 0; j < i; j++ {
		tripleQuotes += strings.Count(lines[j], `"""`) + strings.Count(lines[j], "'''")
	}
	return tripleQuotes%2 == 1
}

// lineOffsetAt returns the byte offset of the start of the given
// 1-indexed line within text, used to map a ServiceCall's LineNumber
// back to a byte range when associating it with its enclosing chunk.
func lineOffsetAt(text string, line int) int {
	if line <= 1 {
		return 0
	}
	seen := 1
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			seen++
			if seen == line {
				return i + 1
			}
		}
	}
	return len(text)
}

// AttachCallsToChunk runs the extractor over one chunk and fills its
// CallsOut metadata with the discovered raw target services, returning
// the ServiceCalls found (their LineNumber is relative to the chunk's
// own text, not the file).
func AttachCallsToChunk(chunk *types.RawChunk) []types.ServiceCall {
	extractor := NewCallExtractor()
	calls, targets := extractor.Extract(chunk.SourceURI, chunk.Text)
	if len(targets) > 0 {
		chunk.Metadata.CallsOut = dedupe(append(append([]string(nil), chunk.Metadata.CallsOut...), targets...))
	}
	return calls
}

// AssignFileCallsToChunks runs the extractor over the whole file text
// once, then associates each detected ServiceCall with the chunk whose
// byte range contains its line number. This finds
// calls that AttachCallsToChunk alone would miss when a call site's
// surrounding context (e.g. a multi-line literal) straddles a chunk
// boundary produced by the sliding-window fallback.
func AssignFileCallsToChunks(sourceURI, fileText string, chunks []*types.RawChunk) []types.ServiceCall {
	extractor := NewCallExtractor()
	calls, _ := extractor.Extract(sourceURI, fileText)

	for _, call := range calls {
		offset := lineOffsetAt(fileText, call.LineNumber)
		for _, chunk := range chunks {
			if offset >= chunk.ByteRange.Start && offset < chunk.ByteRange.End {
				if !containsString(chunk.Metadata.CallsOut, call.TargetService) {
					chunk.Metadata.CallsOut = append(chunk.Metadata.CallsOut, call.TargetService)
				}
				break
			}
		}
	}
	return calls
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// mustAtoi parses s as a decimal integer; unparsable input yields 0
// rather than an error. Nothing in the package calls it at present.
func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
