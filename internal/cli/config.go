package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackseed/pkg/cmake"
	"github.com/matzehuels/stackseed/pkg/feedcache"
	"github.com/matzehuels/stackseed/pkg/workspace"
)

// Cache backends.
const (
	backendFile  = "file"
	backendRedis = "redis"
	backendNone  = "none"
)

// Config is the optional user configuration file.
type Config struct {
	// Freshness is how long cached feeds are trusted, in seconds. Zero or
	// less disables staleness checks.
	Freshness int64  `toml:"freshness"`
	Workers   int    `toml:"workers"`
	Git       string `toml:"git"`

	Cache CacheConfig `toml:"cache"`
	CMake CMakeConfig `toml:"cmake"`
}

// CacheConfig selects the feed cache backend.
type CacheConfig struct {
	Backend  string `toml:"backend"`
	Dir      string `toml:"dir"`
	RedisURL string `toml:"redis_url"`
}

// CMakeConfig customizes the generated build descriptors.
type CMakeConfig struct {
	MinimumVersion  string `toml:"minimum_version"`
	ModuleComponent string `toml:"module_component"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Freshness: int64(feedcache.DefaultFreshness / time.Second),
		Workers:   workspace.DefaultWorkers,
		Git:       "git",
		Cache:     CacheConfig{Backend: backendFile},
		CMake: CMakeConfig{
			MinimumVersion:  cmake.DefaultMinimumVersion,
			ModuleComponent: cmake.DefaultModuleComponent,
		},
	}
}

// LoadConfig reads the configuration at path on top of the defaults and
// applies environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if v := os.Getenv("STACKSEED_FRESHNESS"); v != "" {
		secs, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid STACKSEED_FRESHNESS %q: %w", v, err)
		}
		cfg.Freshness = secs
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "", backendFile, backendNone:
	case backendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache backend %q requires redis_url", backendRedis)
		}
	default:
		return fmt.Errorf("unknown cache backend %q (must be one of: file, redis, none)", c.Cache.Backend)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

// FreshnessDuration returns the freshness as a duration. Zero or less
// disables staleness checks and maps to a negative duration.
func (c *Config) FreshnessDuration() time.Duration {
	if c.Freshness <= 0 {
		return -1
	}
	return time.Duration(c.Freshness) * time.Second
}

// CMakeOptions returns the descriptor generator options.
func (c *Config) CMakeOptions() cmake.Options {
	return cmake.Options{MinimumVersion: c.CMake.MinimumVersion, ModuleComponent: c.CMake.ModuleComponent}
}

// configPath returns the configuration file location: $STACKSEED_CONFIG,
// else the XDG config directory (~/.config/stackseed/config.toml).
func configPath() (string, error) {
	if p := os.Getenv("STACKSEED_CONFIG"); p != "" {
		return p, nil
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
