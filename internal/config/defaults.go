package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default versions track the last upstream releases the link step was
// validated against.
const (
	DefaultGobnilpVersion = "1.6.1"
	DefaultScipVersion    = "3.1.1"
)

// applyDefaults fills zero-valued fields.
func (c *Config) applyDefaults() {
	if c.Gobnilp.Version == "" {
		c.Gobnilp.Version = DefaultGobnilpVersion
	}
	if c.Scip.Version == "" {
		c.Scip.Version = DefaultScipVersion
	}
	if c.Scip.Dir == "" {
		c.Scip.Dir = c.Gobnilp.Dir
	}
	if c.SettingsFile == "" {
		c.SettingsFile = "mysettings.txt"
	}
	if c.ConstraintsFile == "" {
		c.ConstraintsFile = "myconstraints.txt"
	}
	if c.DataDir == "" && c.Gobnilp.Dir != "" {
		c.DataDir = filepath.Join(c.Gobnilp.Dir, "data")
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = Duration(2 * time.Second)
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(".gobn", "runs.db")
	}
}

const defaultConfigTemplate = `# gobn configuration
#
# Both package directories hold the source archives; the build trees are
# created next to them by 'gobn make'.
gobnilp:
  dir: %q
  version: %q

scip:
  dir: %q
  version: %q

# Solver input files. The constraints file is linked from the settings file
# via the gobnilp/dagconstraintsfile setting.
settings_file: mysettings.txt
constraints_file: myconstraints.txt

solver:
  cplex: false
  verbose: false
  # timeout: 1h

watch:
  debounce: 2s
  # interval: 30m
  # metrics_addr: ":9090"

history:
  path: .gobn/runs.db
`

const defaultSettingsTemplate = `# GOBNILP settings. Lines beginning with # are comments.
gobnilp/dagconstraintsfile = "myconstraints.txt"
gobnilp/delimiter = ","
gobnilp/mergedelimiters = FALSE
gobnilp/scoring/names = FALSE
gobnilp/scoring/alpha = 1
gobnilp/scoring/palim = 3
limits/time = 3600
`

// Init writes a commented default configuration and a starter settings file.
// Existing files are preserved unless force is set.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	content := fmt.Sprintf(defaultConfigTemplate, cwd, DefaultGobnilpVersion, cwd, DefaultScipVersion)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}

	settingsPath := filepath.Join(filepath.Dir(configPath), "mysettings.txt")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) || force {
		if err := os.WriteFile(settingsPath, []byte(defaultSettingsTemplate), 0o644); err != nil {
			return fmt.Errorf("write settings file: %w", err)
		}
	}
	return nil
}
