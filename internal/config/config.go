// Package config handles loading and parsing of configuration for the
// knox command line tool.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the knox CLI.
type Config struct {
	Credentials CredentialsConfig `yaml:"credentials"`
	Service     ServiceConfig     `yaml:"service"`
	Transfer    TransferConfig    `yaml:"transfer"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CredentialsConfig holds the signing credentials.
type CredentialsConfig struct {
	// AccessKey is the access key identifier sent in Authorization headers.
	AccessKey string `yaml:"access_key"`
	// SecretKey is the signing secret. Never transmitted.
	SecretKey string `yaml:"secret_key"`
}

// ServiceConfig holds the target bucket and endpoint.
type ServiceConfig struct {
	// Bucket is the bucket all commands operate on.
	Bucket string `yaml:"bucket"`
	// Endpoint is the service host, without scheme or port.
	Endpoint string `yaml:"endpoint"`
	// Port is an optional non-default service port.
	Port int `yaml:"port"`
	// Secure selects https when true.
	Secure bool `yaml:"secure"`
}

// TransferConfig holds multipart transfer tuning.
type TransferConfig struct {
	// Concurrency bounds in-flight part uploads.
	Concurrency int `yaml:"concurrency"`
	// PartSizeMB is the preferred part size in mebibytes. Values below the
	// service minimum are raised to it.
	PartSizeMB int64 `yaml:"part_size_mb"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is one of text, json.
	Format string `yaml:"format"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config with defaults applied. A missing file is not an error when
// path is empty; the returned config then carries only defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Endpoint: "s3.amazonaws.com",
			Secure:   true,
		},
		Transfer: TransferConfig{
			Concurrency: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyEnv overrides file values with environment variables, so secrets
// can stay out of config files.
func applyEnv(cfg *Config) {
	if v := os.Getenv("KNOX_ACCESS_KEY"); v != "" {
		cfg.Credentials.AccessKey = v
	}
	if v := os.Getenv("KNOX_SECRET_KEY"); v != "" {
		cfg.Credentials.SecretKey = v
	}
	if v := os.Getenv("KNOX_BUCKET"); v != "" {
		cfg.Service.Bucket = v
	}
}

// applyDefaults fills in any fields still at their zero value after
// unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Service.Endpoint == "" {
		cfg.Service.Endpoint = "s3.amazonaws.com"
	}
	if cfg.Transfer.Concurrency == 0 {
		cfg.Transfer.Concurrency = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
