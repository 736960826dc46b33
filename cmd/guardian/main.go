// Guardian is a context-aware policy gate for cloud infrastructure
// tools.
//
// It sits between an automated operator and the tools it may run,
// enforcing an operational-mode policy: every tool execution is
// validated against a three-stage pipeline (global block, mode block,
// mode allow-list with default deny), with time-limited temporary
// elevation to an emergency mode.
//
// Usage:
//
//	# Start server with default configuration
//	guardian run
//
//	# Start with custom configuration file
//	guardian run --config /path/to/config.yaml
//
//	# Validate a policy document
//	guardian validate --policy policies/ops_policy.json
//
//	# Show version information
//	guardian version
package main

func main() {
	Execute()
}
