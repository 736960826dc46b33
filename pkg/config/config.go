package config

import "time"

// Config is the root configuration for the guardian service.
type Config struct {
	// Server configures the HTTP transport.
	Server ServerConfig `yaml:"server"`

	// Policy configures the policy document and engine defaults.
	Policy PolicyConfig `yaml:"policy"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics"`

	// Audit configures the decision audit trail.
	Audit AuditConfig `yaml:"audit"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address the server binds to (host:port).
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum keep-alive idle time.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxHeaderBytes limits request header size.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PolicyConfig contains policy document settings.
type PolicyConfig struct {
	// Path is the policy document file (JSON or YAML).
	Path string `yaml:"path"`

	// DefaultMode is the mode in force at startup.
	DefaultMode string `yaml:"default_mode"`

	// WatchDrift enables the fsnotify drift watcher, which warns when
	// the on-disk document diverges from the loaded one.
	WatchDrift bool `yaml:"watch_drift"`

	// MaxGrantSeconds bounds grant_temporary durations. Requests above
	// the bound are rejected by the transport.
	MaxGrantSeconds int `yaml:"max_grant_seconds"`

	// MaxExtendSeconds bounds extend_temporary durations.
	MaxExtendSeconds int `yaml:"max_extend_seconds"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled enables the metrics endpoint.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric namespace prefix.
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem prefix.
	Subsystem string `yaml:"subsystem"`

	// Path is the HTTP path the metrics handler is mounted at.
	Path string `yaml:"path"`
}

// AuditConfig contains audit trail settings.
type AuditConfig struct {
	// Enabled enables decision audit recording.
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend ("memory" or "sqlite").
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// BufferSize is the async record channel capacity.
	BufferSize int `yaml:"buffer_size"`

	// RetentionDays is how long records are kept before pruning.
	// Zero disables pruning.
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for scheduled pruning
	// (e.g. "0 3 * * *" for daily at 3 AM). Empty disables the
	// scheduler.
	PruneSchedule string `yaml:"prune_schedule"`
}
