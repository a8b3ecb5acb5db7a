package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.knowgraph/logs/),
// falling back to the temp directory when no home directory exists.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".knowgraph", "logs")
	}
	return filepath.Join(home, ".knowgraph", "logs")
}

// DefaultLogPath returns the server (search/MCP) log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// IndexLogPath returns the ingestion-run log path. Index runs log to
// their own file so a long crawl doesn't drown query-time entries.
func IndexLogPath() string {
	return filepath.Join(DefaultLogDir(), "index.log")
}

// LogSource selects which log files to view.
type LogSource string

const (
	// LogSourceServer is the search/MCP server log (default).
	LogSourceServer LogSource = "server"
	// LogSourceIndex is the ingestion log.
	LogSourceIndex LogSource = "index"
	// LogSourceAll merges both.
	LogSourceAll LogSource = "all"
)

// FindLogFile locates the log file to view: an explicit path wins,
// otherwise the default server log.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found; nothing has run with --debug yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource returns the existing log files for a source.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var candidates []string
	switch source {
	case LogSourceServer:
		candidates = []string{DefaultLogPath()}
	case LogSourceIndex:
		candidates = []string{IndexLogPath()}
	case LogSourceAll:
		candidates = []string{DefaultLogPath(), IndexLogPath()}
	default:
		return nil, fmt.Errorf("unknown log source: %s (use: server, index, all)", source)
	}

	var paths []string
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\n%s", source, candidates, logHint(source))
	}
	return paths, nil
}

// ParseLogSource parses a string into a LogSource, defaulting to server.
func ParseLogSource(s string) LogSource {
	switch s {
	case "index":
		return LogSourceIndex
	case "all":
		return LogSourceAll
	default:
		return LogSourceServer
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}

func logHint(source LogSource) string {
	switch source {
	case LogSourceIndex:
		return "To generate ingestion logs:\n  knowgraph --debug index <path>"
	case LogSourceAll:
		return "To generate logs:\n  knowgraph --debug index <path>\n  knowgraph --debug serve"
	default:
		return "To generate server logs:\n  knowgraph --debug serve"
	}
}
