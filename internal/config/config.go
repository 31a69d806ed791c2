// Package config loads the optional repair configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config controls where the engine reads and writes. Every field has a
// sensible default; the config file only overrides.
type Config struct {
	// StateDir holds the journal, backups, and session lock.
	StateDir string `yaml:"state_dir"`
	// RCFile is the zsh rc file managed fixers edit.
	RCFile string `yaml:"rc_file"`
	// ConfigDir is the tool's own config directory.
	ConfigDir string `yaml:"config_dir"`
	// TemplateDir holds the stock config templates.
	TemplateDir string `yaml:"template_dir"`
	// PluginDir is where zsh plugins are cloned.
	PluginDir string `yaml:"plugin_dir"`
}

// Load reads and parses a config file, then fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault loads ~/.repair/config.yaml when present, or pure defaults
// otherwise. REPAIR_STATE_DIR overrides the state directory either way.
func LoadDefault() (*Config, error) {
	var cfg *Config

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	path := filepath.Join(home, ".repair", "config.yaml")
	if _, statErr := os.Stat(path); statErr == nil {
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = &Config{}
		if err := applyDefaults(cfg); err != nil {
			return nil, err
		}
	}

	if dir := os.Getenv("REPAIR_STATE_DIR"); dir != "" {
		cfg.StateDir = dir
	}
	return cfg, nil
}

// JournalPath returns the journal file inside the state directory.
func (c *Config) JournalPath() string {
	return filepath.Join(c.StateDir, "journal.jsonl")
}

// BackupDir returns the backups root inside the state directory.
func (c *Config) BackupDir() string {
	return filepath.Join(c.StateDir, "backups")
}

// LockPath returns the session lock file inside the state directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir, "session.lock")
}

func applyDefaults(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("get home dir: %w", err)
	}
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(home, ".repair")
	}
	if cfg.RCFile == "" {
		cfg.RCFile = filepath.Join(home, ".zshrc")
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = filepath.Join(home, ".config", "acfs")
	}
	if cfg.TemplateDir == "" {
		cfg.TemplateDir = filepath.Join(cfg.StateDir, "templates")
	}
	if cfg.PluginDir == "" {
		cfg.PluginDir = filepath.Join(home, ".zsh", "plugins")
	}
	return nil
}
