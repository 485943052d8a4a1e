package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete configuration for a consolidation run.
type Config struct {
	Batch     BatchConfig     `yaml:"batch" envconfig:"BATCH"`
	Merge     MergeConfig     `yaml:"merge" envconfig:"MERGE"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// BatchConfig controls the workbook worker pool.
type BatchConfig struct {
	// Workers bounds how many workbooks are processed in parallel.
	Workers int `yaml:"workers" envconfig:"WORKERS" default:"4" validate:"min=1,max=64"`
}

// MergeConfig carries the tunable merge thresholds. The vertical and
// diagnostic thresholds are empirically chosen and deliberately independent.
type MergeConfig struct {
	// VerticalThreshold is the minimum fingerprint similarity for a
	// vertical merge.
	VerticalThreshold float64 `yaml:"vertical_threshold" envconfig:"VERTICAL_THRESHOLD" default:"0.75" validate:"gte=0,lte=1"`
	// DiagnosticThreshold is the looser similarity used when matching
	// blocks for diagnostics only.
	DiagnosticThreshold float64 `yaml:"diagnostic_threshold" envconfig:"DIAGNOSTIC_THRESHOLD" default:"0.8" validate:"gte=0,lte=1"`
	// MaxHeaderRows caps the header rows a block may claim.
	MaxHeaderRows int `yaml:"max_header_rows" envconfig:"MAX_HEADER_ROWS" default:"4" validate:"min=1,max=8"`
	// AnnualContext reads bare 4-digit year headers as full-year periods
	// instead of Q4 snapshots.
	AnnualContext bool `yaml:"annual_context" envconfig:"ANNUAL_CONTEXT" default:"false"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/filingcli.log"`
}

// TelemetryConfig controls the OpenTelemetry trace exporter.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	Exporter string `yaml:"exporter" envconfig:"EXPORTER" default:"stdout" validate:"oneof=stdout none"`
}

// Load reads configuration from environment variables (FILING_ prefix) and,
// when present, a config.yaml file. Environment values win.
func Load() (*Config, error) {
	cfg := Default()

	if path := configFilePath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("FILING", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Batch: BatchConfig{Workers: 4},
		Merge: MergeConfig{
			VerticalThreshold:   0.75,
			DiagnosticThreshold: 0.8,
			MaxHeaderRows:       4,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/filingcli.log",
		},
		Telemetry: TelemetryConfig{Exporter: "stdout"},
	}
}

func configFilePath() string {
	for _, location := range []string{"config.yaml", "configs/config.yaml"} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}
