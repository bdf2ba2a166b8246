// Package config provides configuration loading and validation for the
// asset garbage collector. Supports YAML files with environment variable
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Actions supported by the collector.
const (
	ActionPrint        = "print"
	ActionTag          = "tag"
	ActionDeleteTagged = "delete-tagged"
	ActionFull         = "full"
)

// Targets supported by the collector.
const (
	TargetS3  = "s3"
	TargetECR = "ecr"
	TargetAll = "all"
)

// Config holds all configuration for a collection run.
type Config struct {
	GC            GCConfig            `yaml:"gc"`
	AWS           AWSConfig           `yaml:"aws"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// GCConfig controls what the collector does and how aggressively.
type GCConfig struct {
	// Action selects the mutation mode: print, tag, delete-tagged or full.
	Action string `yaml:"action" env:"ASSETGC_ACTION"`

	// Target selects which stores to sweep: s3, ecr or all.
	Target string `yaml:"target" env:"ASSETGC_TARGET"`

	// RollbackBufferDays is the grace period: the minimum number of days an
	// asset must stay isolated before it may be deleted. Zero deletes
	// unreferenced assets immediately.
	RollbackBufferDays int `yaml:"rollbackBufferDays" env:"ASSETGC_ROLLBACK_BUFFER_DAYS"`

	// CreatedBufferDays is the age floor: assets younger than this many
	// days are never considered.
	CreatedBufferDays int `yaml:"createdBufferDays" env:"ASSETGC_CREATED_BUFFER_DAYS"`

	// Confirm requires an interactive confirmation before each delete batch.
	Confirm bool `yaml:"confirm" env:"ASSETGC_CONFIRM"`

	// BootstrapStackName is the CloudFormation stack whose outputs name the
	// asset bucket and image repository. Default: "CDKToolkit".
	BootstrapStackName string `yaml:"bootstrapStackName" env:"ASSETGC_BOOTSTRAP_STACK"`

	// BatchSize is the number of candidate assets per sweep batch.
	BatchSize int `yaml:"batchSize" env:"ASSETGC_BATCH_SIZE"`

	// Concurrency bounds the number of in-flight mutation calls.
	Concurrency int `yaml:"concurrency" env:"ASSETGC_CONCURRENCY"`

	// MaxRootAgeMs bounds how stale the root set may be when a batch is
	// classified. Default: 600000 (10 minutes).
	MaxRootAgeMs int64 `yaml:"maxRootAgeMs" env:"ASSETGC_MAX_ROOT_AGE_MS"`

	// RefreshIntervalMs is the interval between background root refreshes.
	// Default: 300000 (5 minutes).
	RefreshIntervalMs int64 `yaml:"refreshIntervalMs" env:"ASSETGC_REFRESH_INTERVAL_MS"`
}

// AWSConfig configures the AWS clients.
type AWSConfig struct {
	Region       string `yaml:"region" env:"ASSETGC_AWS_REGION"`
	Endpoint     string `yaml:"endpoint" env:"ASSETGC_AWS_ENDPOINT"`
	AccessKey    string `yaml:"accessKey" env:"ASSETGC_AWS_ACCESS_KEY"`
	SecretKey    string `yaml:"secretKey" env:"ASSETGC_AWS_SECRET_KEY"`
	UsePathStyle bool   `yaml:"usePathStyle" env:"ASSETGC_AWS_PATH_STYLE"`
}

// ObservabilityConfig configures logging and metrics.
type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"ASSETGC_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"ASSETGC_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"ASSETGC_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		GC: GCConfig{
			Action:             ActionPrint,
			Target:             TargetAll,
			RollbackBufferDays: 30,
			CreatedBufferDays:  1,
			Confirm:            true,
			BootstrapStackName: "CDKToolkit",
			BatchSize:          1000,
			Concurrency:        50,
			MaxRootAgeMs:       600000,  // 10 minutes
			RefreshIntervalMs:  300000,  // 5 minutes
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

// Load reads a YAML config file, applies environment overrides and
// validates the result. An empty path loads defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.GC.Action {
	case ActionPrint, ActionTag, ActionDeleteTagged, ActionFull:
	default:
		return fmt.Errorf("invalid action %q: must be one of print, tag, delete-tagged, full", c.GC.Action)
	}

	switch c.GC.Target {
	case TargetS3, TargetECR, TargetAll:
	default:
		return fmt.Errorf("invalid target %q: must be one of s3, ecr, all", c.GC.Target)
	}

	if c.GC.RollbackBufferDays < 0 {
		return fmt.Errorf("rollbackBufferDays must be >= 0, got %d", c.GC.RollbackBufferDays)
	}
	if c.GC.CreatedBufferDays < 0 {
		return fmt.Errorf("createdBufferDays must be >= 0, got %d", c.GC.CreatedBufferDays)
	}
	if c.GC.BatchSize <= 0 {
		return fmt.Errorf("batchSize must be > 0, got %d", c.GC.BatchSize)
	}
	if c.GC.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0, got %d", c.GC.Concurrency)
	}
	if c.GC.BootstrapStackName == "" {
		return fmt.Errorf("bootstrapStackName must not be empty")
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.GC.Action, "ASSETGC_ACTION")
	setString(&c.GC.Target, "ASSETGC_TARGET")
	setInt(&c.GC.RollbackBufferDays, "ASSETGC_ROLLBACK_BUFFER_DAYS")
	setInt(&c.GC.CreatedBufferDays, "ASSETGC_CREATED_BUFFER_DAYS")
	setBool(&c.GC.Confirm, "ASSETGC_CONFIRM")
	setString(&c.GC.BootstrapStackName, "ASSETGC_BOOTSTRAP_STACK")
	setInt(&c.GC.BatchSize, "ASSETGC_BATCH_SIZE")
	setInt(&c.GC.Concurrency, "ASSETGC_CONCURRENCY")
	setInt64(&c.GC.MaxRootAgeMs, "ASSETGC_MAX_ROOT_AGE_MS")
	setInt64(&c.GC.RefreshIntervalMs, "ASSETGC_REFRESH_INTERVAL_MS")

	setString(&c.AWS.Region, "ASSETGC_AWS_REGION")
	setString(&c.AWS.Endpoint, "ASSETGC_AWS_ENDPOINT")
	setString(&c.AWS.AccessKey, "ASSETGC_AWS_ACCESS_KEY")
	setString(&c.AWS.SecretKey, "ASSETGC_AWS_SECRET_KEY")
	setBool(&c.AWS.UsePathStyle, "ASSETGC_AWS_PATH_STYLE")

	setString(&c.Observability.MetricsAddr, "ASSETGC_METRICS_ADDR")
	setString(&c.Observability.LogLevel, "ASSETGC_LOG_LEVEL")
	setString(&c.Observability.LogFormat, "ASSETGC_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
