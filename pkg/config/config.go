// Package config loads engine configuration from a YAML file with
// environment overrides. A .env file in the working directory is loaded
// first so local development does not need exported variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/promptstrike/promptstrike/pkg/defaults"
)

// Duration accepts both "30s" strings and bare second counts in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DetectionConfig tunes response classification.
type DetectionConfig struct {
	// SuccessThreshold declares an attack successful at or above this
	// confidence.
	SuccessThreshold float64 `yaml:"success_threshold"`

	// FindingThreshold escalates a success into a finding at or above
	// this confidence.
	FindingThreshold float64 `yaml:"finding_threshold"`
}

// RunConfig sets engine-wide run defaults; individual runs may override.
type RunConfig struct {
	RateLimit int      `yaml:"rate_limit"`
	Timeout   Duration `yaml:"timeout"`
	Retries   int      `yaml:"retries"`
}

// TelemetryConfig wires optional metrics and tracing.
type TelemetryConfig struct {
	// Metrics exposes /metrics on the API server.
	Metrics bool `yaml:"metrics"`

	// OTLPEndpoint enables trace export when set (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// OTLPInsecure disables TLS for the exporter connection.
	OTLPInsecure bool `yaml:"otlp_insecure"`
}

// Config is the full engine configuration.
type Config struct {
	// Listen is the API listen address.
	Listen string `yaml:"listen"`

	// PayloadDir holds the JSON payload catalog files.
	PayloadDir string `yaml:"payload_dir"`

	// SnapshotPath, when set, persists store state to this file.
	SnapshotPath string `yaml:"snapshot_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Detection DetectionConfig `yaml:"detection"`
	Run       RunConfig       `yaml:"run"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns the configuration used when no file or environment is
// present.
func Default() Config {
	return Config{
		Listen:     defaults.ListenAddr,
		PayloadDir: "payloads",
		LogLevel:   "info",
		Detection: DetectionConfig{
			SuccessThreshold: defaults.SuccessThreshold,
			FindingThreshold: defaults.FindingThreshold,
		},
		Run: RunConfig{
			RateLimit: defaults.RateLimit,
			Timeout:   Duration(defaults.Timeout),
			Retries:   defaults.Retries,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when empty), then environment variables. A missing .env file
// is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	fillZeros(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PROMPTSTRIKE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("PROMPTSTRIKE_PAYLOAD_DIR"); v != "" {
		cfg.PayloadDir = v
	}
	if v := os.Getenv("PROMPTSTRIKE_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("PROMPTSTRIKE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PROMPTSTRIKE_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("PROMPTSTRIKE_METRICS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Telemetry.Metrics = b
		}
	}
	if v := os.Getenv("PROMPTSTRIKE_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Run.RateLimit = n
		}
	}
}

func fillZeros(cfg *Config) {
	def := Default()
	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.PayloadDir == "" {
		cfg.PayloadDir = def.PayloadDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Detection.SuccessThreshold <= 0 {
		cfg.Detection.SuccessThreshold = def.Detection.SuccessThreshold
	}
	if cfg.Detection.FindingThreshold <= 0 {
		cfg.Detection.FindingThreshold = def.Detection.FindingThreshold
	}
	if cfg.Run.RateLimit <= 0 {
		cfg.Run.RateLimit = def.Run.RateLimit
	}
	if cfg.Run.Timeout <= 0 {
		cfg.Run.Timeout = def.Run.Timeout
	}
	if cfg.Run.Retries <= 0 {
		cfg.Run.Retries = def.Run.Retries
	}
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
