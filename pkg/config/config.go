// Package config contains the tunables of the execution engine. The
// configuration is typically loaded from a YAML file on disk.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Prefetch policy names.
const (
	PrefetchNone      = "none"
	PrefetchBuffered  = "buffered"
	PrefetchDirect    = "direct"
	PrefetchReadAhead = "readahead"
)

// Config describes how operators are executed.
type Config struct {
	// One of logrus' level names. Defaults to "info".
	LogLevel string `yaml:"logLevel"`

	Spill    Spill    `yaml:"spill"`
	Prefetch Prefetch `yaml:"prefetch"`
	HashJoin HashJoin `yaml:"hashJoin"`
}

// Spill controls when grouping, sorting and distinct state moves out of
// the Go heap and into the spill store.
type Spill struct {
	// Number of entries a collection holds in memory before spilling. Zero
	// never spills.
	Threshold int `yaml:"threshold"`

	// Directory for the spill store. Empty keeps spilled data in an
	// in-memory Badger instance.
	Dir string `yaml:"dir"`

	// Snappy-compress spilled solutions.
	Compress bool `yaml:"compress"`
}

// Prefetch controls the asynchronous iterator placed in front of slow
// inputs.
type Prefetch struct {
	// One of "none", "buffered", "direct" or "readahead".
	Policy string `yaml:"policy"`

	// Batch sizes for the read-ahead policy.
	InitialBatch int `yaml:"initialBatch"`
	MaxBatch     int `yaml:"maxBatch"`
}

// HashJoin holds hash join tuning.
type HashJoin struct {
	// Initial number of buckets reserved for the build side.
	InitialCapacity int `yaml:"initialCapacity"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Spill: Spill{
			Threshold: 100000,
		},
		Prefetch: Prefetch{
			Policy:       PrefetchBuffered,
			InitialBatch: 16,
			MaxBatch:     1024,
		},
		HashJoin: HashJoin{
			InitialCapacity: 64,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(filename string) (*Config, error) {
	f, err := os.Open(filename) // #nosec G304 - path supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML configuration on top of the defaults. Unknown fields
// are an error.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid logLevel: %w", err)
	}
	if c.Spill.Threshold < 0 {
		return fmt.Errorf("spill.threshold must be >= 0, got %d", c.Spill.Threshold)
	}
	switch c.Prefetch.Policy {
	case PrefetchNone, PrefetchBuffered, PrefetchDirect, PrefetchReadAhead:
	default:
		return fmt.Errorf("unknown prefetch.policy %q", c.Prefetch.Policy)
	}
	if c.Prefetch.InitialBatch < 1 {
		return fmt.Errorf("prefetch.initialBatch must be >= 1, got %d", c.Prefetch.InitialBatch)
	}
	if c.Prefetch.MaxBatch < c.Prefetch.InitialBatch {
		return fmt.Errorf("prefetch.maxBatch (%d) must be >= prefetch.initialBatch (%d)",
			c.Prefetch.MaxBatch, c.Prefetch.InitialBatch)
	}
	if c.HashJoin.InitialCapacity < 0 {
		return fmt.Errorf("hashJoin.initialCapacity must be >= 0, got %d", c.HashJoin.InitialCapacity)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
