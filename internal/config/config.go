// Package config loads vault.yaml, the single configuration file
// declaring named storage backends, the cache database location, the
// path-template string, and organize defaults, as a flat YAML-backed
// struct loaded with a single Load call.
package config

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/logging"
	"github.com/ao3vault/vault/internal/storage"
)

// BackendKind names a supported backend type in vault.yaml.
type BackendKind string

const (
	BackendLocal BackendKind = "local"
	BackendS3    BackendKind = "s3"
)

// BackendConfig declares a single named backend. Exactly one of the
// kind-specific fields is meaningful, selected by Kind.
type BackendConfig struct {
	Name string      `yaml:"name"`
	Kind BackendKind `yaml:"kind"`

	// Local fields.
	Root string `yaml:"root,omitempty"`

	// S3 fields.
	Bucket          string `yaml:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	PathStyle       bool   `yaml:"path_style,omitempty"`

	// ReadOnly wraps the constructed backend in storage.ReadOnly.
	ReadOnly bool `yaml:"read_only,omitempty"`
	// ExtensionAllowlist, if non-empty, wraps the constructed backend in
	// storage.ExtensionFilter restricted to these extensions.
	ExtensionAllowlist []string `yaml:"extensions,omitempty"`
}

// OrganizeConfig declares the organize pipeline's defaults.
type OrganizeConfig struct {
	// Template is the path-template source passed to template.New.
	Template string `yaml:"template"`
	// Compression is the target compression format for every relocated
	// file; empty means "preserve each file's existing format".
	Compression string `yaml:"compression,omitempty"`
	// Trash names a backend (from Backends) that irreconcilable
	// duplicates are written to before deletion. Empty disables trashing.
	Trash string `yaml:"trash,omitempty"`
}

// Config is the root of vault.yaml.
type Config struct {
	// CacheDatabase is the path to the SQLite cache database file. Empty
	// opens an in-memory database.
	CacheDatabase string `yaml:"cache_database"`
	// LogLevel names a logging.Level (see logging.ParseLevel).
	LogLevel string          `yaml:"log_level,omitempty"`
	Backends []BackendConfig `yaml:"backends"`
	Organize OrganizeConfig  `yaml:"organize"`
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read file")
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "config: parse YAML")
	}
	return cfg, nil
}

// Logger constructs the root logger described by LogLevel, defaulting to
// logging.LevelInfo for an empty or unrecognized value.
func (c *Config) Logger() *logging.Logger {
	level, ok := logging.ParseLevel(c.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	return logging.New(level)
}

// BuildRegistry constructs a storage.Registry with one backend per entry
// in Backends.
func (c *Config) BuildRegistry(logger *logging.Logger) (*storage.Registry, error) {
	registry := storage.NewRegistry()
	for _, bc := range c.Backends {
		backend, err := buildBackend(bc, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "config: build backend %q", bc.Name)
		}
		if err := registry.Register(backend); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildBackend(bc BackendConfig, logger *logging.Logger) (storage.Backend, error) {
	var backend storage.Backend
	var err error

	switch bc.Kind {
	case BackendLocal:
		backend, err = storage.NewLocalBackend(bc.Name, bc.Root)
	case BackendS3:
		backend, err = storage.NewS3Backend(storage.S3Config{
			Name:            bc.Name,
			Bucket:          bc.Bucket,
			Prefix:          bc.Prefix,
			Region:          bc.Region,
			Endpoint:        bc.Endpoint,
			AccessKeyID:     bc.AccessKeyID,
			SecretAccessKey: bc.SecretAccessKey,
			PathStyle:       bc.PathStyle,
		}, logger.Sublogger(bc.Name))
	default:
		return nil, fmt.Errorf("config: unknown backend kind %q", bc.Kind)
	}
	if err != nil {
		return nil, err
	}

	if len(bc.ExtensionAllowlist) > 0 {
		backend = storage.NewExtensionFilter(backend, bc.ExtensionAllowlist...)
	}
	if bc.ReadOnly {
		backend = storage.NewReadOnly(backend, logger.Sublogger(bc.Name))
	}
	return backend, nil
}

// CompressionFormat resolves the organize config's Compression name to a
// compression.Format, or nil if unset (meaning "preserve existing").
func (o OrganizeConfig) CompressionFormat() (*compression.Format, error) {
	if o.Compression == "" {
		return nil, nil
	}
	formats := map[string]compression.Format{
		"none": compression.None,
		"gzip": compression.Gzip,
		"zstd": compression.Zstd,
		"xz":   compression.Xz,
	}
	format, ok := formats[o.Compression]
	if !ok {
		return nil, fmt.Errorf("config: unknown organize compression %q", o.Compression)
	}
	return &format, nil
}
