// Package config loads the optional lockbox configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the config file inside the data directory.
const FileName = "config.yaml"

// Defaults.
const (
	DefaultBackupRetention = 5
	DefaultAutoLockMinutes = 15
)

// Config holds the tunable settings. Cryptographic parameters are fixed
// constants and deliberately absent here.
type Config struct {
	// BackupDir overrides the default <data dir>/backups location.
	BackupDir string `yaml:"backup_dir"`
	// BackupRetention is how many automatic backups to keep.
	BackupRetention int `yaml:"backup_retention"`
	// AutoLockMinutes is consumed by the surrounding application's session
	// layer; the core only carries it.
	AutoLockMinutes int `yaml:"auto_lock_minutes"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		BackupRetention: DefaultBackupRetention,
		AutoLockMinutes: DefaultAutoLockMinutes,
	}
}

// Load reads dir/config.yaml. A missing file yields the defaults; a file
// that exists but does not parse is an error, not a silent fallback.
// Unset fields take their default values.
func Load(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", FileName, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", FileName, err)
	}
	if cfg.BackupRetention <= 0 {
		cfg.BackupRetention = DefaultBackupRetention
	}
	if cfg.AutoLockMinutes <= 0 {
		cfg.AutoLockMinutes = DefaultAutoLockMinutes
	}
	return cfg, nil
}
