// Package main provides the entry point for the knowgraph CLI.
package main

import (
	"fmt"
	"os"

	"github.com/strataforge/knowgraph/cmd/knowgraph/cmd"
	kgerrors "github.com/strataforge/knowgraph/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, kgerrors.FormatForCLI(err))
		os.Exit(1)
	}
}
