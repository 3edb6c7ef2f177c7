// Package main is the entry point for the application gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitaliydpua/appgw/internal/config"
	"github.com/vitaliydpua/appgw/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(flags.configPath, logger)

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", observability.Error(err))
		os.Exit(1)
	}

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("APPGW_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("APPGW_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("APPGW_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information and exits.
func printVersion() {
	fmt.Printf("appgw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// loadConfig loads and validates the configuration.
func loadConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting appgw",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load configuration", observability.Error(err))
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		logger.Error("invalid configuration", observability.Error(err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		observability.String("address", cfg.Server.Address),
		observability.Int("excluded_endpoints", len(cfg.Throttle.ExcludedEndpoints)),
		observability.Bool("redis_slots", cfg.Redis.Address != ""),
	)
	return cfg
}

// run starts the application and blocks until a shutdown signal.
func run(app *application, configPath string, logger observability.Logger) {
	ctx := context.Background()

	if err := app.Start(ctx); err != nil {
		logger.Error("failed to start application", observability.Error(err))
		os.Exit(1)
	}

	watcher := startConfigWatcher(app, configPath, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", observability.String("signal", sig.String()))

	if watcher != nil {
		_ = watcher.Stop()
	}

	app.Shutdown(logger)
}

// startConfigWatcher starts the configuration watcher. Watcher failures
// are not fatal: the gateway keeps running on the boot configuration.
func startConfigWatcher(app *application, configPath string, logger observability.Logger) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, func(cfg *config.Config) {
		logger.Info("configuration changed, applying throttle settings")
		app.ApplyThrottleConfig(cfg.Throttle)
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}
	return watcher
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
