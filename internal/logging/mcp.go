package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for MCP server mode: file only,
// never stdout or stderr. The MCP transport owns stdout exclusively
// for JSON-RPC; a single stray byte on either stream corrupts the
// protocol and the client reports a failed connection.
func SetupMCPMode() (func(), error) {
	return SetupMCPModeWithLevel("debug")
}

// SetupMCPModeWithLevel is SetupMCPMode with an explicit level.
func SetupMCPModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("mcp_logging_initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
