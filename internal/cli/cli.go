// Package cli implements the stackseed command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackseed/pkg/buildinfo"
	"github.com/matzehuels/stackseed/pkg/cache"
	"github.com/matzehuels/stackseed/pkg/observability"
	"github.com/matzehuels/stackseed/pkg/pipeline"
	"github.com/matzehuels/stackseed/pkg/vcs"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "stackseed"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	// Out receives command output and progress lines.
	Out io.Writer

	configFile string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "stackseed",
		Short: "Stackseed sets up development workspaces from 0install feeds",
		Long: `Stackseed resolves a set of 0install feeds, checks out the source repository
of every selected component as a git submodule, and generates a CMake project
that builds all of them together.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Solver and git subprocesses must never open a GUI.
			return os.Setenv("DISPLAY", "")
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/stackseed/config.toml)")

	root.AddCommand(c.developCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Config and Runner Factory
// =============================================================================

// loadConfig reads the configuration selected by --config or the
// environment.
func (c *CLI) loadConfig() (*Config, error) {
	path := c.configFile
	if path == "" {
		var err error
		if path, err = configPath(); err != nil {
			c.Logger.Debug("no config directory", "err", err)
			path = ""
		}
	}
	return LoadConfig(path)
}

// newRunner creates a pipeline runner for CLI use and registers the
// logging hooks.
func (c *CLI) newRunner(ctx context.Context, cfg *Config) (*pipeline.Runner, error) {
	store, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	git := vcs.NewCLI(cfg.Git, c.Logger)
	if err := git.Available(); err != nil {
		store.Close()
		return nil, fmt.Errorf("git executable %q not found: %w", cfg.Git, err)
	}
	observability.NewLogHooks(c.Logger).Register()
	return pipeline.NewRunner(store, git, c.Logger), nil
}

// newResolveRunner is newRunner for commands that never run git.
func (c *CLI) newResolveRunner(ctx context.Context, cfg *Config) (*pipeline.Runner, error) {
	store, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	observability.NewLogHooks(c.Logger).Register()
	return pipeline.NewRunner(store, nil, c.Logger), nil
}

func newCache(ctx context.Context, cfg CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case backendNone:
		return cache.NewNullCache(), nil
	case backendRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect to feed cache: %w", err)
		}
		return rc, nil
	}
	dir := cfg.Dir
	if dir == "" {
		var err error
		if dir, err = cacheDir(); err != nil {
			return cache.NewNullCache(), nil
		}
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/stackseed/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// pipelineOptions builds run options from the config.
func (c *CLI) pipelineOptions(cfg *Config, feeds []string, refresh bool) pipeline.Options {
	return pipeline.Options{
		Feeds:     feeds,
		Refresh:   refresh,
		Freshness: cfg.FreshnessDuration(),
		Workers:   cfg.Workers,
		CMake:     cfg.CMakeOptions(),
		Out:       c.Out,
		Logger:    c.Logger,
	}
}
