// Package cmd provides the CLI commands for knowgraph: a thin cobra
// tree over the ingestion and retrieval library packages. It wires
// flags to library calls and nothing more; there is no daemon, TUI,
// session manager, or file watcher here.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/strataforge/knowgraph/internal/logging"
	"github.com/strataforge/knowgraph/pkg/version"
)

// Debug logging flag and the logger it configures.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the knowgraph CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowgraph",
		Short: "Hybrid code, config, and conversation knowledge graph",
		Long: `knowgraph ingests source code, deploy manifests, Markdown docs, and
conversation exports (Slack, transcripts) into a scrubbed,
content-addressable chunk store, and serves hybrid dense+BM25+graph
retrieval over the result.

Run 'knowgraph index <path>' to build an index, then 'knowgraph search
<query>' to query it, or 'knowgraph serve' to expose retrieval over
MCP.`,
		Version:      version.Short(),
		SilenceUsage: true,
	}

	cmd.SetVersionTemplate("knowgraph version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.knowgraph/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables debug file logging when --debug is set; absent
// that flag, commands log to stderr via the slog default.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
