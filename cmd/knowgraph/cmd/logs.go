package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/strataforge/knowgraph/internal/logging"
)

type logsOptions struct {
	file    string
	source  string
	lines   int
	follow  bool
	level   string
	pattern string
	noColor bool
}

// newLogsCmd creates the logs command: tail or follow the debug logs
// written under ~/.knowgraph/logs/.
func newLogsCmd() *cobra.Command {
	opts := logsOptions{}

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View knowgraph debug logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "explicit log file path (default: discovered by --source)")
	cmd.Flags().StringVar(&opts.source, "source", "server", "log source: server, index, or all")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "number of recent lines to show")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "stream new entries as they arrive")
	cmd.Flags().StringVar(&opts.level, "level", "", "minimum level to show (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.pattern, "grep", "", "only show lines matching this regex")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable ANSI colors")

	return cmd
}

func runLogs(cmd *cobra.Command, opts logsOptions) error {
	var pattern *regexp.Regexp
	if opts.pattern != "" {
		var err error
		pattern, err = regexp.Compile(opts.pattern)
		if err != nil {
			return fmt.Errorf("invalid --grep pattern: %w", err)
		}
	}

	source := logging.ParseLogSource(opts.source)
	paths, err := logging.FindLogFileBySource(source, opts.file)
	if err != nil {
		return err
	}

	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:      opts.level,
		Pattern:    pattern,
		NoColor:    opts.noColor,
		ShowSource: source == logging.LogSourceAll,
	}, cmd.OutOrStdout())

	entries, err := viewer.TailMultiple(paths, opts.lines)
	if err != nil {
		return err
	}
	viewer.Print(entries)

	if !opts.follow {
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entryCh := make(chan logging.LogEntry, 64)
	go func() {
		_ = viewer.FollowMultiple(ctx, paths, entryCh)
		close(entryCh)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-entryCh:
			if !ok {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), viewer.FormatEntry(entry))
		}
	}
}
