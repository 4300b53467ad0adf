// Package config loads the optional levctl configuration file. Command line
// flags always win; the file only provides defaults for values the user did
// not pass.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"

	"github.com/srg/levctl/internal/keepalive"
	"github.com/srg/levctl/internal/transport"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "LEVCTL_CONFIG"

// Config holds application configuration.
type Config struct {
	LogLevel  string                   `yaml:"log_level" default:"panic"`
	Connect   transport.ConnectOptions `yaml:"connect"`
	KeepAlive keepalive.Options        `yaml:"keep_alive"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// DefaultPath returns the config file location: $LEVCTL_CONFIG if set,
// otherwise ~/.config/levctl/config.yaml.
func DefaultPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "levctl", "config.yaml")
}

// Load reads a config file over the defaults. A missing file is not an
// error; the defaults are returned as-is. An unreadable or malformed file
// is an error, silently ignoring a broken config would be confusing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}
