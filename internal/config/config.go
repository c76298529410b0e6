// Package config loads and validates the gateway's backend topology and
// replication strategy from a JSON or YAML file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadMode selects how the replication engine dispatches read operations
// (head_bucket, list_objects, head_object, get_object) across backends.
type ReadMode string

const (
	ReadModePrimaryOnly     ReadMode = "PRIMARY_ONLY"
	ReadModePrimaryFallback ReadMode = "PRIMARY_FALLBACK"
	ReadModeBestEffort      ReadMode = "BEST_EFFORT"
	ReadModeAllConsistent   ReadMode = "ALL_CONSISTENT"
)

// WriteMode selects how the replication engine dispatches write operations
// (put_object, delete_object) across backends.
type WriteMode string

const (
	WriteModeAsyncReplication WriteMode = "ASYNC_REPLICATION"
	WriteModeMultiSync        WriteMode = "MULTI_SYNC"
)

// BackendType is the closed set of backend kinds a config entry can name.
type BackendType string

const (
	BackendTypeS3     BackendType = "s3"
	BackendTypeMemory BackendType = "memory"
)

// DefaultVirtualBucket is used when virtualBucket is absent from the config
// file: the gateway still needs a bucket name to match the first path
// segment against.
const DefaultVirtualBucket = "default"

// BackendConfig is one entry in the backends list. Fields not relevant to
// Type are left zero-valued; Validate does not cross-check them.
type BackendConfig struct {
	Type            BackendType `yaml:"type" json:"type"`
	Name            string      `yaml:"name" json:"name"`
	Region          string      `yaml:"region" json:"region"`
	Bucket          string      `yaml:"bucket" json:"bucket"`
	Endpoint        string      `yaml:"endpoint" json:"endpoint"`
	ForcePathStyle  bool        `yaml:"force_path_style" json:"force_path_style"`
	AccessKeyID     string      `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string      `yaml:"secret_access_key" json:"secret_access_key"`
}

// Config is the top-level gateway configuration.
type Config struct {
	VirtualBucket                 string          `yaml:"virtualBucket" json:"virtualBucket"`
	ReadMode                      ReadMode        `yaml:"readMode" json:"readMode"`
	WriteMode                     WriteMode       `yaml:"writeMode" json:"writeMode"`
	PrimaryBackendName            string          `yaml:"primaryBackendName" json:"primaryBackendName"`
	UseLatencyBasedPrimaryBackend bool            `yaml:"useLatencyBasedPrimaryBackend" json:"useLatencyBasedPrimaryBackend"`
	Backends                      []BackendConfig `yaml:"backends" json:"backends"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LoggingConfig holds structured logging settings, carried from the teacher
// regardless of the Non-goals list: observability is ambient, not a feature.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level" json:"level"`
	// Format is the log output format: "text" or "json".
	Format string `yaml:"format" json:"format"`
}

// Load reads a configuration file at path, selecting JSON or YAML decoding
// by the file extension (case-insensitive), and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unrecognized config file extension %q (want .json, .yaml, or .yml)", ext)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.VirtualBucket == "" {
		cfg.VirtualBucket = DefaultVirtualBucket
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks the invariants spec.md §6 requires: a non-empty backend
// list, unique backend names, a named primary that actually exists, the
// two primary-selection mechanisms being mutually exclusive, and known
// read/write mode values.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("backends list must not be empty")
	}

	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend entry missing name")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = true

		switch b.Type {
		case BackendTypeS3, BackendTypeMemory:
		default:
			return fmt.Errorf("backend %q: unknown type %q", b.Name, b.Type)
		}
		if b.Type == BackendTypeS3 && b.Bucket == "" {
			return fmt.Errorf("backend %q: s3 backend requires bucket", b.Name)
		}
	}

	if c.PrimaryBackendName != "" && c.UseLatencyBasedPrimaryBackend {
		return fmt.Errorf("primaryBackendName and useLatencyBasedPrimaryBackend are mutually exclusive")
	}
	if c.PrimaryBackendName != "" && !seen[c.PrimaryBackendName] {
		return fmt.Errorf("primaryBackendName %q does not match any configured backend", c.PrimaryBackendName)
	}

	switch c.ReadMode {
	case ReadModePrimaryOnly, ReadModePrimaryFallback, ReadModeBestEffort, ReadModeAllConsistent:
	default:
		return fmt.Errorf("unknown readMode %q", c.ReadMode)
	}

	switch c.WriteMode {
	case WriteModeAsyncReplication, WriteModeMultiSync:
	default:
		return fmt.Errorf("unknown writeMode %q", c.WriteMode)
	}

	return nil
}

// PrimaryIndex returns the configured primary backend's position in
// Backends, or 0 if no explicit primary is named (the caller runs latency
// election instead, or defaults to index 0 per spec.md §4.3.4).
func (c *Config) PrimaryIndex() int {
	if c.PrimaryBackendName == "" {
		return 0
	}
	for i, b := range c.Backends {
		if b.Name == c.PrimaryBackendName {
			return i
		}
	}
	return 0
}
