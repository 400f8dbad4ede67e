// Package config loads run configuration for lazydf from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/razeghi71/lazydf/dataset"
	"github.com/razeghi71/lazydf/engine"
	"github.com/razeghi71/lazydf/logging"
)

// Config controls how a graph is executed and where its data comes from.
// Workers of 0 means one slot per CPU.
type Config struct {
	Workers   int           `yaml:"workers"`
	Seed      int64         `yaml:"seed"`
	ChunkSize int64         `yaml:"chunk_size"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Dataset   *dataset.Spec `yaml:"dataset"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Workers:   1,
		ChunkSize: 4096,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads a YAML config file. Fields missing from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML config on top of Default and validates it.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks value ranges and the embedded dataset spec.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	}
	if c.ChunkSize < 1 {
		errs = append(errs, fmt.Errorf("chunk_size must be >= 1, got %d", c.ChunkSize))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	if c.Dataset != nil {
		if err := c.Dataset.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// EngineOptions translates the execution settings into graph options.
func (c *Config) EngineOptions() []engine.Option {
	return []engine.Option{
		engine.WithWorkers(c.Workers),
		engine.WithSeed(c.Seed),
		engine.WithChunkSize(c.ChunkSize),
	}
}
