// Package config loads the bridge configuration from baked-in defaults,
// an optional YAML file, and CDB_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the complete configuration for the CarData bridge.
type Config struct {
	Network   NetworkConfig   `yaml:"network"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Source    SourceConfig    `yaml:"source"`
}

// NetworkConfig holds HTTP server settings.
type NetworkConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"readTimeoutSec"`
	WriteTimeoutSec int    `yaml:"writeTimeoutSec"`
	IdleTimeoutSec  int    `yaml:"idleTimeoutSec"`
}

// TelemetryConfig holds live-push timing and buffering settings.
type TelemetryConfig struct {
	HeartbeatIntervalSec int `yaml:"heartbeatIntervalSec"`
	HeartbeatJitterMs    int `yaml:"heartbeatJitterMs"`
	EventBufferSize      int `yaml:"eventBufferSize"`
}

// AuthConfig holds bearer token verification settings. When Enabled is
// false all routes are open; the health endpoint is open either way.
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Algorithm    string `yaml:"algorithm"` // "HS256" or "RS256"
	SecretKey    string `yaml:"secretKey"`
	PublicKeyPEM string `yaml:"publicKeyPem"`
}

// LoggingConfig holds structured log output settings.
type LoggingConfig struct {
	Dir        string `yaml:"dir"`
	Level      string `yaml:"level"` // debug, info, warn, error
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// SourceConfig selects the telemetry feed driving the coordinator.
// Mode "sim" runs the simulated drive source; "none" leaves the
// coordinator empty until something else upserts states.
type SourceConfig struct {
	Mode       string       `yaml:"mode"`
	IntervalMs int          `yaml:"intervalMs"`
	Vehicles   []SimVehicle `yaml:"vehicles"`
}

// SimVehicle seeds one simulated vehicle.
type SimVehicle struct {
	VIN        string  `yaml:"vin"`
	Lat        float64 `yaml:"lat"`
	Lon        float64 `yaml:"lon"`
	HeadingDeg float64 `yaml:"headingDeg"`
	SpeedKph   float64 `yaml:"speedKph"`
}

// Load builds the configuration from defaults, an optional YAML file
// (path argument, else $CDB_CONFIG, else ./config.yaml if present), and
// CDB_* environment overrides. The result is validated before return.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CDB_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the baked-in configuration baseline.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			Addr:            ":8000",
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 30,
			IdleTimeoutSec:  120,
		},
		Telemetry: TelemetryConfig{
			HeartbeatIntervalSec: 15,
			HeartbeatJitterMs:    2000,
			EventBufferSize:      50,
		},
		Auth: AuthConfig{
			Enabled:   false,
			Algorithm: "HS256",
		},
		Logging: LoggingConfig{
			Dir:        "logs",
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Source: SourceConfig{
			Mode:       "none",
			IntervalMs: 2000,
		},
	}
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CDB_ADDR"); v != "" {
		cfg.Network.Addr = v
	}
	if v := os.Getenv("CDB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CDB_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("CDB_SOURCE_MODE"); v != "" {
		cfg.Source.Mode = v
	}
	if v := os.Getenv("CDB_AUTH_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Enabled = b
		}
	}
	if v := os.Getenv("CDB_AUTH_SECRET"); v != "" {
		cfg.Auth.SecretKey = v
	}
	if v := os.Getenv("CDB_HEARTBEAT_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Telemetry.HeartbeatIntervalSec = n
		}
	}
	if v := os.Getenv("CDB_EVENT_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Telemetry.EventBufferSize = n
		}
	}
	if v := os.Getenv("CDB_SOURCE_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Source.IntervalMs = n
		}
	}
}

// Validate checks field ranges and cross-field requirements.
func Validate(cfg *Config) error {
	if cfg.Network.Addr == "" {
		return fmt.Errorf("network addr must not be empty")
	}
	if cfg.Telemetry.HeartbeatIntervalSec < 1 || cfg.Telemetry.HeartbeatIntervalSec > 300 {
		return fmt.Errorf("heartbeat interval %d seconds is outside range [1, 300]", cfg.Telemetry.HeartbeatIntervalSec)
	}
	if cfg.Telemetry.EventBufferSize < 1 || cfg.Telemetry.EventBufferSize > 10000 {
		return fmt.Errorf("event buffer size %d is outside range [1, 10000]", cfg.Telemetry.EventBufferSize)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", cfg.Logging.Level)
	}
	switch cfg.Source.Mode {
	case "none", "sim":
	default:
		return fmt.Errorf("invalid source mode %q, must be one of: none, sim", cfg.Source.Mode)
	}
	if cfg.Source.Mode == "sim" && cfg.Source.IntervalMs < 100 {
		return fmt.Errorf("source interval %d ms is below the 100 ms floor", cfg.Source.IntervalMs)
	}
	if cfg.Auth.Enabled {
		switch cfg.Auth.Algorithm {
		case "HS256":
			if cfg.Auth.SecretKey == "" {
				return fmt.Errorf("auth algorithm HS256 requires a secret key")
			}
		case "RS256":
			if cfg.Auth.PublicKeyPEM == "" {
				return fmt.Errorf("auth algorithm RS256 requires a public key PEM")
			}
		default:
			return fmt.Errorf("invalid auth algorithm %q, must be HS256 or RS256", cfg.Auth.Algorithm)
		}
	}
	return nil
}

// ReadTimeout returns the HTTP read timeout as a duration.
func (n NetworkConfig) ReadTimeout() time.Duration {
	return time.Duration(n.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the HTTP write timeout as a duration.
func (n NetworkConfig) WriteTimeout() time.Duration {
	return time.Duration(n.WriteTimeoutSec) * time.Second
}

// IdleTimeout returns the HTTP idle timeout as a duration.
func (n NetworkConfig) IdleTimeout() time.Duration {
	return time.Duration(n.IdleTimeoutSec) * time.Second
}

// HeartbeatInterval returns the hub heartbeat interval as a duration.
func (t TelemetryConfig) HeartbeatInterval() time.Duration {
	return time.Duration(t.HeartbeatIntervalSec) * time.Second
}

// HeartbeatJitter returns the hub heartbeat jitter as a duration.
func (t TelemetryConfig) HeartbeatJitter() time.Duration {
	return time.Duration(t.HeartbeatJitterMs) * time.Millisecond
}

// Interval returns the source tick interval as a duration.
func (s SourceConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}
