package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"proxi-hq/guardian/pkg/audit"
	"proxi-hq/guardian/pkg/audit/retention"
	"proxi-hq/guardian/pkg/audit/storage"
	"proxi-hq/guardian/pkg/config"
	"proxi-hq/guardian/pkg/policy"
	"proxi-hq/guardian/pkg/policy/engine"
	"proxi-hq/guardian/pkg/server"
	"proxi-hq/guardian/pkg/telemetry/logging"
	"proxi-hq/guardian/pkg/telemetry/metrics"
	"proxi-hq/guardian/pkg/tools"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	policyPath    string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the guardian server",
	Long: `Start the guardian server with the specified configuration.

The server loads the policy document, initializes the policy engine,
registers the infrastructure tools, and serves the policy and tool
execution API.

Examples:
  # Start with default config
  guardian run

  # Start with custom config
  guardian run --config /etc/guardian/config.yaml

  # Override listen address
  guardian run --listen 0.0.0.0:8080

  # Validate config and policy without starting the server
  guardian run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.policyPath, "policy", "", "override policy document path")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and policy without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if runFlags.policyPath != "" {
		cfg.Policy.Path = runFlags.policyPath
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	slog.SetDefault(logger)

	// Load policy document
	doc, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		return fmt.Errorf("failed to load policy document: %w", err)
	}
	fmt.Printf("✓ Policy loaded: %s v%s (modes: %v)\n", doc.Name, doc.Version, doc.ModeNames())

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	var policyMetrics *metrics.PolicyMetrics
	if cfg.Metrics.Enabled {
		policyMetrics = metrics.NewPolicyMetrics(&cfg.Metrics, nil)
		fmt.Println("✓ Metrics enabled")
	}

	// Audit trail
	var (
		recorder   *audit.Recorder
		auditStore audit.Storage
		pruner     *retention.Pruner
	)
	if cfg.Audit.Enabled {
		switch cfg.Audit.Backend {
		case "sqlite":
			sqliteConfig := storage.DefaultSQLiteConfig()
			sqliteConfig.Path = cfg.Audit.SQLitePath
			auditStore, err = storage.NewSQLiteStorage(sqliteConfig)
			if err != nil {
				return fmt.Errorf("failed to create SQLite audit storage: %w", err)
			}
		case "memory":
			auditStore = storage.NewMemoryStorage()
		default:
			return fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
		}
		defer auditStore.Close()

		recorder = audit.NewRecorder(auditStore, &audit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
		})
		defer recorder.Close()

		if cfg.Audit.PruneSchedule != "" {
			pruner = retention.NewPruner(auditStore, &retention.Config{
				RetentionDays: cfg.Audit.RetentionDays,
				PruneSchedule: cfg.Audit.PruneSchedule,
			})
			if err := pruner.Start(ctx); err != nil {
				slog.Warn("failed to start retention scheduler", "error", err)
			} else {
				defer pruner.Stop()
			}
		}

		fmt.Printf("✓ Audit trail enabled (backend: %s)\n", cfg.Audit.Backend)
	}

	// Policy engine with event fanout
	var events []engine.EventRecorder
	if policyMetrics != nil {
		events = append(events, policyMetrics)
	}
	if recorder != nil {
		events = append(events, audit.NewEngineEvents(recorder))
	}
	engineConfig := &engine.Config{
		DefaultMode: cfg.Policy.DefaultMode,
		Logger:      logger,
	}
	if len(events) > 0 {
		engineConfig.Events = engine.MultiRecorder(events...)
	}

	eng, err := engine.New(doc, engineConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}
	fmt.Printf("✓ Policy engine initialized (default mode: %s)\n", cfg.Policy.DefaultMode)

	// Drift watcher. Watch blocks until the context is cancelled, so it
	// runs on its own goroutine.
	if cfg.Policy.WatchDrift {
		watcher := policy.NewDriftWatcher(cfg.Policy.Path, doc, logger)
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Warn("policy drift watcher stopped", "error", err)
			}
		}()
		fmt.Println("✓ Policy drift watcher started")
	}

	// Tools
	infra := tools.NewCloudInfra()
	registry := tools.NewRegistry()
	if err := infra.RegisterAll(registry); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	fmt.Printf("✓ Tools registered (%d tools)\n", len(registry.Catalog()))

	// HTTP server
	opts := server.Options{
		Config:     cfg,
		Engine:     eng,
		Registry:   registry,
		Infra:      infra,
		Recorder:   recorder,
		AuditStore: auditStore,
	}
	if policyMetrics != nil {
		opts.MetricsHandler = policyMetrics.Handler()
	}
	srv := server.NewServer(opts)

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if cfg.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a signal or shutdown
	return srv.Start(ctx)
}

// loadConfig loads the configuration file, falling back to defaults
// plus environment overrides when the default file is absent.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err == nil {
		return cfg, nil
	}

	defaultPath := cfgFile == "config.yaml"
	if defaultPath && errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config file not found, using defaults with environment overrides", "path", cfgFile)
		return config.FromEnv()
	}

	return nil, fmt.Errorf("failed to load config: %w", err)
}
