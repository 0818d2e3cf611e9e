package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STACKSEED_FRESHNESS", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FreshnessDuration() != 7*24*time.Hour {
		t.Errorf("freshness = %v", cfg.FreshnessDuration())
	}
	if cfg.Workers != 8 || cfg.Git != "git" || cfg.Cache.Backend != "file" {
		t.Errorf("defaults = %+v", cfg)
	}
	if opts := cfg.CMakeOptions(); opts.MinimumVersion != "2.8.8" || opts.ModuleComponent != "ryppl" {
		t.Errorf("cmake options = %+v", opts)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("STACKSEED_FRESHNESS", "")
	path := writeConfig(t, `
freshness = 3600
workers = 2
git = "/usr/local/bin/git"

[cache]
backend = "redis"
redis_url = "redis://localhost:6379/1"

[cmake]
minimum_version = "3.16"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FreshnessDuration() != time.Hour || cfg.Workers != 2 || cfg.Git != "/usr/local/bin/git" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisURL != "redis://localhost:6379/1" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.CMake.MinimumVersion != "3.16" || cfg.CMake.ModuleComponent != "ryppl" {
		t.Errorf("cmake = %+v", cfg.CMake)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("STACKSEED_FRESHNESS", "0")
	cfg, err := LoadConfig(writeConfig(t, "freshness = 3600\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.FreshnessDuration() >= 0 {
		t.Errorf("freshness = %v, want disabled", cfg.FreshnessDuration())
	}

	t.Setenv("STACKSEED_FRESHNESS", "soon")
	if _, err := LoadConfig(""); err == nil {
		t.Error("expected error for invalid STACKSEED_FRESHNESS")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("STACKSEED_FRESHNESS", "")
	tests := map[string]string{
		"syntax":          "workers = [",
		"unknown backend": "[cache]\nbackend = \"s3\"\n",
		"redis no url":    "[cache]\nbackend = \"redis\"\n",
		"negative":        "workers = -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
