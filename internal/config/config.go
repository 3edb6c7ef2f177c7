// Package config loads and watches the gateway configuration.
package config

import (
	"fmt"
	"time"
)

// Config is the root gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Throttle ThrottleConfig `yaml:"throttle"`
	Backends BackendsConfig `yaml:"backends"`
	Redis    RedisConfig    `yaml:"redis"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	TrustedProxies  []string      `yaml:"trustedProxies"`
	MaxBodyBytes    int64         `yaml:"maxBodyBytes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SourceLimitConfig holds one traffic class's per-IP rate.
type SourceLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// ThrottleConfig holds throttle service settings.
type ThrottleConfig struct {
	Authenticated     SourceLimitConfig `yaml:"authenticated"`
	Anonymous         SourceLimitConfig `yaml:"anonymous"`
	SlotTTL           time.Duration     `yaml:"slotTtl"`
	ExcludedEndpoints []string          `yaml:"excludedEndpoints"`
}

// BackendConfig holds one backend collaborator's client settings.
type BackendConfig struct {
	BaseURL          string        `yaml:"baseUrl"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerTimeout   time.Duration `yaml:"breakerTimeout"`
}

// BackendsConfig holds the backend collaborators.
type BackendsConfig struct {
	Identity     BackendConfig `yaml:"identity"`
	Installation BackendConfig `yaml:"installation"`
	Counterparty BackendConfig `yaml:"counterparty"`
}

// RedisConfig holds the optional Redis slot store settings. An empty
// address selects the in-memory store.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// TracingConfig holds tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Throttle: ThrottleConfig{
			Authenticated: SourceLimitConfig{RPS: 50, Burst: 100},
			Anonymous:     SourceLimitConfig{RPS: 100, Burst: 200},
			SlotTTL:       30 * time.Second,
		},
		Tracing: TracingConfig{
			SamplingRate: 0.1,
		},
	}
}

// Validate checks the configuration for inconsistencies.
func Validate(cfg *Config) error {
	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if cfg.Throttle.Authenticated.RPS < 0 || cfg.Throttle.Anonymous.RPS < 0 {
		return fmt.Errorf("throttle rates must not be negative")
	}
	// A positive rate with a zero burst admits nothing.
	if cfg.Throttle.Authenticated.RPS > 0 && cfg.Throttle.Authenticated.Burst <= 0 {
		return fmt.Errorf("throttle.authenticated.burst must be positive when rps is set")
	}
	if cfg.Throttle.Anonymous.RPS > 0 && cfg.Throttle.Anonymous.Burst <= 0 {
		return fmt.Errorf("throttle.anonymous.burst must be positive when rps is set")
	}
	if cfg.Throttle.SlotTTL < 0 {
		return fmt.Errorf("throttle.slotTtl must not be negative")
	}
	for name, backend := range map[string]BackendConfig{
		"identity":     cfg.Backends.Identity,
		"installation": cfg.Backends.Installation,
		"counterparty": cfg.Backends.Counterparty,
	} {
		if backend.BaseURL == "" {
			return fmt.Errorf("backends.%s.baseUrl is required", name)
		}
	}
	return nil
}
