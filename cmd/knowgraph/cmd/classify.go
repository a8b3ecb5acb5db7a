package cmd

import (
	"path/filepath"
	"strings"

	"github.com/strataforge/knowgraph/internal/types"
)

// astExtensions are the source extensions the AST chunker's language
// registry understands (go, typescript/tsx, javascript/jsx, python).
var astExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".py": true,
}

// deployDirHints marks a YAML file as a Kubernetes/Helm deploy manifest
// rather than plain application config, by path segment.
var deployDirHints = []string{"k8s", "kubernetes", "deploy", "deployment", "helm", "charts", "manifests"}

// classifySource maps a file's relative path to the CorpusType that
// governs how it is chunked, scrubbed, and indexed. Files that match
// nothing recognizable are
// skipped entirely by returning ok=false, the same way an unreadable
// binary file would be.
func classifySource(relPath string) (types.CorpusType, bool) {
	ext := strings.ToLower(filepath.Ext(relPath))
	base := strings.ToLower(filepath.Base(relPath))
	dir := strings.ToLower(relPath)

	switch {
	case astExtensions[ext]:
		return types.CorpusCodeLogic, true

	case ext == ".yaml" || ext == ".yml":
		if pathHasAny(dir, deployDirHints) {
			return types.CorpusCodeDeploy, true
		}
		return types.CorpusCodeConfig, true

	case ext == ".md" || ext == ".markdown":
		switch {
		case strings.Contains(base, "readme"):
			return types.CorpusDocReadme, true
		case strings.Contains(base, "adr") || strings.Contains(dir, "/adr/") || strings.HasPrefix(dir, "adr/"):
			return types.CorpusDocADR, true
		case strings.Contains(base, "runbook") || strings.Contains(dir, "runbook"):
			return types.CorpusDocRunbook, true
		default:
			return types.CorpusDocReadme, true
		}

	case ext == ".json" && (strings.Contains(dir, "slack") || strings.Contains(base, "slack")):
		return types.CorpusConvoSlack, true

	case (ext == ".txt" || ext == ".log") && strings.Contains(dir, "transcript"):
		return types.CorpusConvoTranscript, true

	default:
		return "", false
	}
}

func pathHasAny(path string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(path, "/"+h+"/") || strings.HasPrefix(path, h+"/") {
			return true
		}
	}
	return false
}
