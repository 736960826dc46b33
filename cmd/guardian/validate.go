package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"proxi-hq/guardian/pkg/policy"
)

var validateFlags struct {
	policyPath string
	mode       string
	format     string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a policy document",
	Long: `Parse and validate a policy document without starting the server.

The validate command loads the policy document, runs the same structural
checks the server performs at startup, and prints a summary of the
resulting policy:
  - Declared operational modes and their allow/block lists
  - Globally blocked tools
  - The elevated mode used by temporary grants

Examples:
  # Validate the default policy
  guardian validate

  # Validate a specific document
  guardian validate --policy policies/ops_policy.json

  # Inspect a single mode
  guardian validate --policy policies/ops_policy.json --mode EMERGENCY

  # Machine-readable output
  guardian validate --format json`,
	RunE: validatePolicy,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.policyPath, "policy", "policies/ops_policy.json", "policy document path")
	validateCmd.Flags().StringVar(&validateFlags.mode, "mode", "", "show details for a single mode")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

func validatePolicy(cmd *cobra.Command, args []string) error {
	doc, err := policy.Load(validateFlags.policyPath)
	if err != nil {
		return fmt.Errorf("policy validation failed: %w", err)
	}

	if validateFlags.mode != "" && !doc.HasMode(validateFlags.mode) {
		return fmt.Errorf("policy %q does not declare mode %q (modes: %s)",
			doc.Name, validateFlags.mode, strings.Join(doc.ModeNames(), ", "))
	}

	if validateFlags.format == "json" {
		return printPolicyJSON(doc)
	}

	fmt.Printf("✓ Policy document is valid: %s\n", validateFlags.policyPath)
	fmt.Println()
	fmt.Printf("Name:    %s\n", doc.Name)
	fmt.Printf("Version: %s\n", doc.Version)
	if elevated := doc.ElevatedMode(); elevated != "" {
		fmt.Printf("Elevated mode: %s\n", elevated)
	}
	if blocked := doc.GlobalAlwaysBlocked(); len(blocked) > 0 {
		fmt.Printf("Always blocked: %s\n", strings.Join(blocked, ", "))
	}
	fmt.Println()

	modeNames := doc.ModeNames()
	if validateFlags.mode != "" {
		modeNames = []string{validateFlags.mode}
	}

	for _, name := range modeNames {
		mode, _ := doc.Mode(name)
		fmt.Printf("Mode %s:\n", name)
		if mode.Description != "" {
			fmt.Printf("  %s\n", mode.Description)
		}
		fmt.Printf("  Allowed: %s\n", formatToolList(mode.AllowedTools))
		fmt.Printf("  Blocked: %s\n", formatToolList(mode.BlockedTools))
	}

	return nil
}

func printPolicyJSON(doc *policy.Document) error {
	summary := map[string]any{
		"valid":          true,
		"name":           doc.Name,
		"version":        doc.Version,
		"modes":          doc.ModeNames(),
		"always_blocked": doc.GlobalAlwaysBlocked(),
	}
	if elevated := doc.ElevatedMode(); elevated != "" {
		summary["elevated_mode"] = elevated
	}

	modes := make(map[string]any)
	for _, name := range doc.ModeNames() {
		mode, _ := doc.Mode(name)
		modes[name] = map[string]any{
			"description":   mode.Description,
			"allowed_tools": mode.AllowedTools,
			"blocked_tools": mode.BlockedTools,
		}
	}
	summary["mode_details"] = modes

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}

func formatToolList(tools []string) string {
	if len(tools) == 0 {
		return "(none)"
	}
	return strings.Join(tools, ", ")
}
