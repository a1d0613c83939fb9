// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/kraklabs/cargo-core/pkg/cachetracker"
)

// Config holds the layered configuration for one cargo-core invocation,
// assembled from built-in defaults, $CARGO_HOME/config.toml, CARGO_*
// environment variables, and finally CLI flags (highest precedence,
// applied by the caller after Load returns).
type Config struct {
	// CargoHome is the root directory for the registry index, git
	// database, downloaded crates, and the global cache tracker.
	// Defaults to ~/.cargo.
	CargoHome string `toml:"-"`

	// Jobs is the default build parallelism when neither -j nor an
	// inherited jobserver sets it. 0 means "use runtime.NumCPU()".
	Jobs int `toml:"jobs"`

	// TargetDir is the build output directory, relative to the
	// workspace root unless absolute. Defaults to "target".
	TargetDir string `toml:"target-dir"`

	// NetRetry is how many times a transient network error from a
	// source is retried before surfacing as fatal.
	NetRetry int `toml:"net-retry"`

	// DepInfoBasedir is the directory fingerprint path normalisation is
	// relative to (§4.4). Empty means "each package's own root".
	DepInfoBasedir string `toml:"build-dep-info-basedir"`

	// RegistryIndexURL is the sparse/HTTP registry index base URL
	// queried for dependencies that are neither path nor git. Empty
	// disables registry resolution entirely; only path/git deps
	// resolve.
	RegistryIndexURL string `toml:"registry-index"`

	// GC holds the global cache tracker's eviction policy knobs.
	GC GCConfig `toml:"gc"`
}

// GCConfig is the eviction policy consumed by pkg/cachetracker.
type GCConfig struct {
	MaxAgeDays       int   `toml:"max-age-days"`
	MaxCrateBytes    int64 `toml:"max-crate-bytes"`
	MaxSrcBytes      int64 `toml:"max-src-bytes"`
	MaxGitBytes      int64 `toml:"max-git-bytes"`
}

// DefaultConfig returns the built-in defaults, the base of the layered
// configuration chain.
func DefaultConfig() Config {
	return Config{
		Jobs:      0,
		TargetDir: "target",
		NetRetry:  1,
		GC: GCConfig{
			MaxAgeDays:    90,
			MaxCrateBytes: 2 << 30, // 2 GiB
			MaxSrcBytes:   2 << 30,
			MaxGitBytes:   1 << 30,
		},
	}
}

// Load assembles the layered configuration: defaults, then
// $CARGO_HOME/config.toml if present, then CARGO_* environment
// variable overrides. CLI flags are applied by the caller afterward,
// since pflag binding lives in cmd/cargo-core, not here.
func Load(cargoHome string, logger *slog.Logger) (Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultConfig()
	cfg.CargoHome = cargoHome

	configPath := filepath.Join(cargoHome, "config.toml")
	if data, err := os.ReadFile(configPath); err == nil {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", configPath, err)
		}
		logger.Debug("bootstrap.config.loaded", "path", configPath)
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read %s: %w", configPath, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CARGO_BUILD_JOBS"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.Jobs = n
		}
	}
	if v := os.Getenv("CARGO_TARGET_DIR"); v != "" {
		cfg.TargetDir = v
	}
	if v := os.Getenv("CARGO_NET_RETRY"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			cfg.NetRetry = n
		}
	}
	if v := os.Getenv("CARGO_BUILD_DEP_INFO_BASEDIR"); v != "" {
		cfg.DepInfoBasedir = v
	}
	if v := os.Getenv("CARGO_REGISTRY_INDEX"); v != "" {
		cfg.RegistryIndexURL = v
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("value must not be negative: %q", s)
	}
	return n, nil
}

// Home is the bootstrapped CARGO_HOME directory layout: the registry
// index cache, the git database/checkout trees, and the global cache
// tracker connection.
type Home struct {
	Root          string
	RegistryDir   string
	GitDir        string
	Tracker       *cachetracker.Tracker
}

// DefaultCargoHome resolves $CARGO_HOME, falling back to ~/.cargo.
func DefaultCargoHome() (string, error) {
	if v := os.Getenv("CARGO_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".cargo"), nil
}

// Init creates the CARGO_HOME directory layout if it doesn't already
// exist and opens the global cache tracker database. It is idempotent:
// calling it repeatedly against the same root is safe.
//
// After successful initialization:
//   - root/registry and root/git exist as directories;
//   - root/.global-cache is a valid, migrated cache tracker database.
func Init(root string, logger *slog.Logger) (*Home, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		return nil, fmt.Errorf("cargo home root is required")
	}

	logger.Info("bootstrap.home.init.start", "root", root)

	registryDir := filepath.Join(root, "registry")
	gitDir := filepath.Join(root, "git")
	for _, dir := range []string{root, registryDir, gitDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tracker, err := cachetracker.Open(filepath.Join(root, ".global-cache"), logger)
	if err != nil {
		return nil, fmt.Errorf("open global cache tracker: %w", err)
	}

	logger.Info("bootstrap.home.init.success", "root", root)

	return &Home{
		Root:        root,
		RegistryDir: registryDir,
		GitDir:      gitDir,
		Tracker:     tracker,
	}, nil
}

// Close releases the tracker database connection.
func (h *Home) Close() error {
	if h.Tracker == nil {
		return nil
	}
	return h.Tracker.Close()
}
