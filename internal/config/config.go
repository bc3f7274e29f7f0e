// Package config loads and validates the gobn application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Gobnilp PackageConfig `yaml:"gobnilp"`
	Scip    PackageConfig `yaml:"scip"`

	SettingsFile    string `yaml:"settings_file"`
	ConstraintsFile string `yaml:"constraints_file"`
	DataDir         string `yaml:"data_dir,omitempty"`

	Solver  SolverConfig  `yaml:"solver,omitempty"`
	Watch   WatchConfig   `yaml:"watch,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
}

// PackageConfig locates one native package's source archive and build tree.
type PackageConfig struct {
	Dir     string `yaml:"dir"`               // directory holding the source archive
	Version string `yaml:"version,omitempty"` // package version, used to derive paths
	Archive string `yaml:"archive,omitempty"` // explicit archive path override
}

// SolverConfig holds switches for builds and solver runs.
type SolverConfig struct {
	CPLEX   bool     `yaml:"cplex,omitempty"`   // link against CPLEX instead of SoPlex
	Verbose bool     `yaml:"verbose,omitempty"` // echo child-process output while running
	Timeout Duration `yaml:"timeout,omitempty"` // wall-clock limit per solver run, 0 = none
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce    Duration `yaml:"debounce,omitempty"`     // quiet period after a file event
	Interval    Duration `yaml:"interval,omitempty"`     // periodic relearn, 0 disables
	MetricsAddr string   `yaml:"metrics_addr,omitempty"` // Prometheus listen address, empty disables
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Derived paths. The archive layout follows the upstream distributions:
// gobnilp<version>.tar.gz extracts in place (a directory must be created for
// it), scipoptsuite-<version>.tgz creates its own top-level directory.

// GobnilpDir is the GOBNILP build tree root.
func (c *Config) GobnilpDir() string {
	return filepath.Join(c.Gobnilp.Dir, "gobnilp"+c.Gobnilp.Version)
}

// GobnilpArchive is the GOBNILP source archive path.
func (c *Config) GobnilpArchive() string {
	if c.Gobnilp.Archive != "" {
		return c.Gobnilp.Archive
	}
	return filepath.Join(c.Gobnilp.Dir, "gobnilp"+c.Gobnilp.Version+".tar.gz")
}

// ScipOptDir is the SCIP Optimization Suite build tree root.
func (c *Config) ScipOptDir() string {
	return filepath.Join(c.Scip.Dir, "scipoptsuite-"+c.Scip.Version)
}

// ScipDir is the inner SCIP directory recorded by the link step.
func (c *Config) ScipDir() string {
	return filepath.Join(c.ScipOptDir(), "scip-"+c.Scip.Version)
}

// ScipArchive is the SCIP source archive path.
func (c *Config) ScipArchive() string {
	if c.Scip.Archive != "" {
		return c.Scip.Archive
	}
	return filepath.Join(c.Scip.Dir, "scipoptsuite-"+c.Scip.Version+".tgz")
}

// BinaryPath is where the built solver binary lands.
func (c *Config) BinaryPath() string {
	return filepath.Join(c.GobnilpDir(), "bin", "gobnilp")
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env files if present; missing files are fine.
	_ = godotenv.Load(".env", ".env.local")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Gobnilp.Dir == "" {
		return fmt.Errorf("gobnilp.dir is required")
	}
	if c.Scip.Dir == "" {
		return fmt.Errorf("scip.dir is required")
	}
	return nil
}
