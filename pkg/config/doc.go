// Package config defines the guardian runtime configuration and its
// loading pipeline: YAML file, applied defaults, GUARDIAN_* environment
// overrides, then validation.
package config
