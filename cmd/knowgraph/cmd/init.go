package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strataforge/knowgraph/internal/config"
)

// newInitCmd creates the init command: write a starter .knowgraph.yaml
// seeded from what the project actually contains.
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter .knowgraph.yaml for a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing .knowgraph.yaml")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	root, err := config.FindProjectRoot(dir)
	if err != nil {
		return err
	}

	configPath := filepath.Join(root, ".knowgraph.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	cfg := config.NewConfig()

	// Scope the crawl to what the project actually has, rather than
	// walking everything under the root.
	var include []string
	include = append(include, config.DiscoverSourceDirs(root)...)
	include = append(include, config.DiscoverDocsDirs(root)...)
	cfg.Paths.Include = include

	if err := cfg.WriteYAML(configPath); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "wrote %s\n", configPath)
	fmt.Fprintf(out, "project type: %s\n", config.DetectProjectType(root))
	if len(include) > 0 {
		fmt.Fprintf(out, "crawl scope: %s\n", strings.Join(include, ", "))
	} else {
		fmt.Fprintln(out, "crawl scope: whole project (no common source/docs dirs found)")
	}
	return nil
}
