package chunk

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/strataforge/knowgraph/internal/types"
)

// serviceURLPattern pulls a hostname out of an http(s) URL embedded in
// a deploy manifest env var, e.g. "http://billing-svc:8080/path" ->
// "billing-svc".
var serviceURLPattern = regexp.MustCompile(`https?://([a-zA-Z0-9][-a-zA-Z0-9]*[a-zA-Z0-9]?)(?::\d+)?(?:/|$)`)

// YAMLChunker splits deploy/config manifests on "---" document
// separators, emitting one chunk per YAML document with Kubernetes
// metadata (kind, name, labels) lifted onto the chunk and outbound
// service references collected from env vars and Ingress backends.
type YAMLChunker struct{}

// NewYAMLChunker builds a YAMLChunker. It holds no state.
func NewYAMLChunker() *YAMLChunker {
	return &YAMLChunker{}
}

// Chunk implements the Chunker interface for CODE_DEPLOY/CODE_CONFIG
// sources.
func (c *YAMLChunker) Chunk(_ context.Context, sourceURI string, source []byte, st types.SourceType, meta types.Metadata) ([]*types.RawChunk, error) {
	docs := splitYAMLDocuments(source)

	var out []*types.RawChunk
	for i, doc := range docs {
		trimmed := strings.TrimSpace(doc.text)
		if trimmed == "" || onlySeparatorLines(trimmed) {
			continue
		}

		var parsed map[string]any
		if err := yaml.Unmarshal([]byte(doc.text), &parsed); err != nil {
			parsed = nil
		}

		m := meta.Clone()
		kind, name, labels, serviceName := extractK8sMetadata(parsed)
		if kind != "" {
			m.SymbolKind = strings.ToLower(kind)
		} else {
			m.SymbolKind = "document"
		}
		if name != "" {
			m.SymbolName = name
		} else {
			m.SymbolName = fmt.Sprintf("doc%d", i)
		}
		m.ServiceName = serviceName
		m.K8sLabels = labels
		m.CallsOut = dedupe(append(extractEnvServiceRefs(parsed), extractIngressBackendRefs(parsed)...))

		rc := &types.RawChunk{
			ID:            types.ChunkID(sourceURI, doc.start, doc.end),
			SourceURI:     sourceURI,
			ByteRange:     types.ByteRange{Start: doc.start, End: doc.end},
			SourceType:    st,
			Text:          doc.text,
			ContextPrefix: fmt.Sprintf("%s > %s/%s", sourceURI, m.SymbolKind, m.SymbolName),
			Metadata:      m,
		}
		out = append(out, rc)
	}
	return out, nil
}

type yamlDocument struct {
	text       string
	start, end int
}

// splitYAMLDocuments splits on lines that read "---" once surrounding
// whitespace is trimmed (a separator on the first line starts no new
// document), tracking
// real byte offsets into source (not rune offsets) so ChunkIDs and
// byte ranges stay valid for multi-byte content.
func splitYAMLDocuments(source []byte) []yamlDocument {
	var starts []int
	starts = append(starts, 0)

	lines := strings.Split(string(source), "\n")
	bytePos := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" && i > 0 {
			nextStart := bytePos + len(line) + 1
			if nextStart < len(source) {
				starts = append(starts, nextStart)
			}
		}
		bytePos += len(line) + 1
	}

	var docs []yamlDocument
	for i, start := range starts {
		var end int
		var text string
		if i+1 < len(starts) {
			end = starts[i+1]
			text = strings.TrimRight(string(source[start:end]), " \t\n")
			text = strings.TrimSuffix(text, "---")
			text = strings.TrimRight(text, " \t\n")
		} else {
			end = len(source)
			text = string(source[start:end])
		}
		docStart := start
		docEnd := docStart + len(text)
		docs = append(docs, yamlDocument{text: text, start: docStart, end: docEnd})
	}
	return docs
}

func onlySeparatorLines(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		l := strings.TrimSpace(line)
		if l != "" && l != "---" {
			return false
		}
	}
	return true
}

func extractK8sMetadata(doc map[string]any) (kind, name string, labels map[string]string, serviceName string) {
	if doc == nil {
		return "", "", nil, ""
	}
	kind, _ = doc["kind"].(string)

	metaVal, _ := doc["metadata"].(map[string]any)
	if metaVal != nil {
		name, _ = metaVal["name"].(string)
		if rawLabels, ok := metaVal["labels"].(map[string]any); ok {
			labels = make(map[string]string, len(rawLabels))
			for k, v := range rawLabels {
				if s, ok := v.(string); ok {
					labels[k] = s
				}
			}
		}
	}
	if labels != nil {
		serviceName = labels["app"]
	}
	return kind, name, labels, serviceName
}

// extractEnvServiceRefs walks a parsed manifest document looking for
// "env" lists and pulling service hostnames out of URL-shaped values.
func extractEnvServiceRefs(doc map[string]any) []string {
	found := map[string]struct{}{}
	var walkDict func(d map[string]any)
	var walkList func(l []any)

	walkDict = func(d map[string]any) {
		for key, value := range d {
			if key == "env" {
				if envList, ok := value.([]any); ok {
					for _, item := range envList {
						envItem, ok := item.(map[string]any)
						if !ok {
							continue
						}
						envValue, _ := envItem["value"].(string)
						for _, match := range serviceURLPattern.FindAllStringSubmatch(envValue, -1) {
							found[match[1]] = struct{}{}
						}
					}
				}
				continue
			}
			switch v := value.(type) {
			case map[string]any:
				walkDict(v)
			case []any:
				walkList(v)
			}
		}
	}
	walkList = func(l []any) {
		for _, item := range l {
			switch v := item.(type) {
			case map[string]any:
				walkDict(v)
			case []any:
				walkList(v)
			}
		}
	}

	if doc != nil {
		walkDict(doc)
	}

	out := make([]string, 0, len(found))
	for s := range found {
		out = append(out, s)
	}
	return out
}

// extractIngressBackendRefs pulls backend service names out of an
// Ingress resource's default backend and per-path rules, including the
// legacy serviceName field.
func extractIngressBackendRefs(doc map[string]any) []string {
	if doc == nil {
		return nil
	}
	if kind, _ := doc["kind"].(string); kind != "Ingress" {
		return nil
	}

	found := map[string]struct{}{}
	spec, _ := doc["spec"].(map[string]any)
	if spec == nil {
		return nil
	}

	addServiceName := func(backend map[string]any) {
		if svc, ok := backend["service"].(map[string]any); ok {
			if name, ok := svc["name"].(string); ok && name != "" {
				found[name] = struct{}{}
			}
		}
		if name, ok := backend["serviceName"].(string); ok && name != "" {
			found[name] = struct{}{}
		}
	}

	if defBackend, ok := spec["defaultBackend"].(map[string]any); ok {
		addServiceName(defBackend)
	}

	if rules, ok := spec["rules"].([]any); ok {
		for _, r := range rules {
			rule, ok := r.(map[string]any)
			if !ok {
				continue
			}
			http, ok := rule["http"].(map[string]any)
			if !ok {
				continue
			}
			paths, ok := http["paths"].([]any)
			if !ok {
				continue
			}
			for _, p := range paths {
				path, ok := p.(map[string]any)
				if !ok {
					continue
				}
				if backend, ok := path["backend"].(map[string]any); ok {
					addServiceName(backend)
				}
			}
		}
	}

	out := make([]string, 0, len(found))
	for s := range found {
		out = append(out, s)
	}
	return out
}

func dedupe(items []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
