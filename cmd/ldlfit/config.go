package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/n0madic/go-incomplete-ldl/aaknn"
	"github.com/n0madic/go-incomplete-ldl/admm"
	"github.com/n0madic/go-incomplete-ldl/incomldl"
	"github.com/n0madic/go-incomplete-ldl/winldl"
)

// Config is the YAML configuration of ldlfit. Command-line flags override
// individual fields.
type Config struct {
	Algorithm     string         `yaml:"algorithm"`
	MaxIterations int            `yaml:"max_iterations"`
	LogEvery      int            `yaml:"log_every"`
	IncomLDL      IncomLDLConfig `yaml:"incomldl"`
	WInLDL        WInLDLConfig   `yaml:"winldl"`
	AAKNN         AAKNNConfig    `yaml:"aaknn"`
	Data          DataConfig     `yaml:"data"`
	Log           LogConfig      `yaml:"log"`
	Metrics       MetricsConfig  `yaml:"metrics"`
}

// IncomLDLConfig holds the low-rank learner settings.
type IncomLDLConfig struct {
	Rho     float64 `yaml:"rho"`
	Alpha   float64 `yaml:"alpha"`
	Workers int     `yaml:"workers"` // 0 means GOMAXPROCS
}

// WInLDLConfig holds the adaptive-weight learner settings.
type WInLDLConfig struct {
	Rho float64 `yaml:"rho"`
}

// AAKNNConfig holds the nearest-neighbour baseline settings.
type AAKNNConfig struct {
	K int `yaml:"k"`
}

// DataConfig controls how CSV inputs are read and split.
type DataConfig struct {
	Header       bool    `yaml:"header"`
	MissingRate  float64 `yaml:"missing_rate"`  // extra entries hidden at random before fitting
	TestFraction float64 `yaml:"test_fraction"` // used by eval
	Seed         int64   `yaml:"seed"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // auto, console or json
}

// MetricsConfig controls the Prometheus textfile output.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
	File      string `yaml:"file"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Algorithm:     winldl.Algorithm,
		MaxIterations: admm.DefaultMaxIterations,
		LogEvery:      10,
		IncomLDL:      IncomLDLConfig{Rho: 1, Alpha: 1e-3},
		WInLDL:        WInLDLConfig{Rho: 2},
		AAKNN:         AAKNNConfig{K: 5},
		Data:          DataConfig{TestFraction: 0.2, Seed: 1},
		Log:           LogConfig{Level: "info", Format: "auto"},
		Metrics:       MetricsConfig{Namespace: "ldl"},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges that the learners would otherwise reject later.
func (c Config) Validate() error {
	switch c.Algorithm {
	case incomldl.Algorithm, winldl.Algorithm, aaknn.Algorithm:
	default:
		return fmt.Errorf("unknown algorithm %q", c.Algorithm)
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", c.MaxIterations)
	}
	if c.LogEvery < 0 {
		return fmt.Errorf("log_every must not be negative, got %d", c.LogEvery)
	}
	if c.IncomLDL.Rho <= 0 || c.IncomLDL.Alpha <= 0 {
		return fmt.Errorf("incomldl rho and alpha must be positive")
	}
	if c.WInLDL.Rho <= 0 {
		return fmt.Errorf("winldl rho must be positive")
	}
	if c.AAKNN.K <= 0 {
		return fmt.Errorf("aaknn k must be positive")
	}
	if c.Data.MissingRate < 0 || c.Data.MissingRate >= 1 {
		return fmt.Errorf("data.missing_rate must be in [0, 1), got %g", c.Data.MissingRate)
	}
	if c.Data.TestFraction <= 0 || c.Data.TestFraction >= 1 {
		return fmt.Errorf("data.test_fraction must be in (0, 1), got %g", c.Data.TestFraction)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("log.format must be auto, console or json, got %q", c.Log.Format)
	}
	return nil
}
