package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "guardian",
	Short: "Guardian - context-aware policy gate for infrastructure tools",
	Long: `Guardian gates tool execution for automated operators behind an
operational-mode policy engine.

It exposes an HTTP API providing:
  - Three-stage tool validation (global block, mode block, allow-list)
  - Operational mode management (e.g. NORMAL and EMERGENCY)
  - Time-limited temporary elevation with automatic reversion
  - A decision audit trail with retention pruning
  - Prometheus metrics for decisions, modes, and grants`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
