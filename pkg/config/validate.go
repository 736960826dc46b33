package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for invalid values. It collects all
// problems rather than stopping at the first.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Server.ListenAddress == "" {
		problems = append(problems, "server.listen_address must not be empty")
	}
	if cfg.Server.ReadTimeout < 0 {
		problems = append(problems, "server.read_timeout must not be negative")
	}
	if cfg.Server.WriteTimeout < 0 {
		problems = append(problems, "server.write_timeout must not be negative")
	}

	if cfg.Policy.Path == "" {
		problems = append(problems, "policy.path must not be empty")
	}
	if cfg.Policy.DefaultMode == "" {
		problems = append(problems, "policy.default_mode must not be empty")
	}
	if cfg.Policy.MaxGrantSeconds < 1 {
		problems = append(problems, "policy.max_grant_seconds must be at least 1")
	}
	if cfg.Policy.MaxExtendSeconds < 1 {
		problems = append(problems, "policy.max_extend_seconds must be at least 1")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not one of json, text", cfg.Logging.Format))
	}

	switch cfg.Audit.Backend {
	case "memory", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("audit.backend %q is not one of memory, sqlite", cfg.Audit.Backend))
	}
	if cfg.Audit.Backend == "sqlite" && cfg.Audit.SQLitePath == "" {
		problems = append(problems, "audit.sqlite_path must not be empty for the sqlite backend")
	}
	if cfg.Audit.BufferSize < 1 {
		problems = append(problems, "audit.buffer_size must be at least 1")
	}
	if cfg.Audit.RetentionDays < 0 {
		problems = append(problems, "audit.retention_days must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
