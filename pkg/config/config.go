// Package config provides configuration loading for the pipeline engine.
// The resulting Config is immutable after creation and passed explicitly
// to every component; nothing reads configuration from ambient state.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "45s" parse naturally.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)

	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full engine configuration.
type Config struct {
	DataDir         string `yaml:"data_dir"         validate:"required"`
	AuditDir        string `yaml:"audit_dir"        validate:"required"`
	EnvironmentsDir string `yaml:"environments_dir" validate:"required"`

	Network    string `yaml:"network"     validate:"required"`
	MaxRetries int    `yaml:"max_retries" validate:"min=0,max=10"`

	ToolTimeout Duration `yaml:"tool_timeout"`

	LogLevel  string `yaml:"log_level"  validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=text pretty"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		DataDir:         "./data",
		AuditDir:        "./data/audit",
		EnvironmentsDir: "./data/environments",
		Network:         "testnet",
		MaxRetries:      3,
		ToolTimeout:     Duration(60 * time.Second),
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads and validates a config file, applying env overrides on top.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOrDefault attempts to load a config file, falling back to defaults
// (plus env overrides) when the file does not exist.
func LoadOrDefault(path string) Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = Default()
		cfg.applyEnv()
	}

	return cfg
}

// Validate checks the configuration against its struct constraints.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FORGEFLOW_DATA_DIR"); v != "" {
		c.DataDir = v
	}

	if v := os.Getenv("FORGEFLOW_AUDIT_DIR"); v != "" {
		c.AuditDir = v
	}

	if v := os.Getenv("FORGEFLOW_ENVIRONMENTS_DIR"); v != "" {
		c.EnvironmentsDir = v
	}

	if v := os.Getenv("FORGEFLOW_NETWORK"); v != "" {
		c.Network = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
