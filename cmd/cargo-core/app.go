// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/cargo-core/internal/bootstrap"
	"github.com/kraklabs/cargo-core/internal/errors"
	"github.com/kraklabs/cargo-core/internal/manifest"
	"github.com/kraklabs/cargo-core/pkg/cachetracker"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
	"github.com/kraklabs/cargo-core/pkg/resolver"
	"github.com/kraklabs/cargo-core/pkg/source"
	"github.com/kraklabs/cargo-core/pkg/unitgraph"
)

// app bundles the bootstrapped environment every subcommand needs:
// the CARGO_HOME layout, its layered config, a logger, and the
// project's own root package.
type app struct {
	home    *bootstrap.Home
	cfg     bootstrap.Config
	logger  *slog.Logger
	rootDir string
	root    pkgid.Package
	file    manifest.File
}

func newApp(globals GlobalFlags) (*app, error) {
	logger := newLogger(globals)

	cargoHome, err := bootstrap.DefaultCargoHome()
	if err != nil {
		return nil, errors.NewConfigError("could not determine CARGO_HOME", err.Error(), "set the CARGO_HOME environment variable", err)
	}

	cfg, err := bootstrap.Load(cargoHome, logger)
	if err != nil {
		return nil, errors.NewConfigError("could not load configuration", err.Error(), "check $CARGO_HOME/config.toml for syntax errors", err)
	}

	home, err := bootstrap.Init(cargoHome, logger)
	if err != nil {
		return nil, errors.NewConfigError("could not initialize CARGO_HOME", err.Error(), "check permissions on "+cargoHome, err)
	}

	root, err := manifest.LoadPackage(globals.Dir)
	if err != nil {
		home.Close()
		return nil, errors.NewConfigError("could not load Cargo.toml", err.Error(), "run this command from a directory containing a Cargo.toml, or pass --dir", err)
	}
	file, err := manifest.Load(filepath.Join(globals.Dir, "Cargo.toml"))
	if err != nil {
		home.Close()
		return nil, errors.NewConfigError("could not load Cargo.toml", err.Error(), "run this command from a directory containing a Cargo.toml, or pass --dir", err)
	}

	return &app{home: home, cfg: cfg, logger: logger, rootDir: globals.Dir, root: root, file: file}, nil
}

func (a *app) Close() {
	if a.home != nil {
		_ = a.home.Close()
	}
}

func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose == 1:
		level = slog.LevelInfo
	}
	if globals.Quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// registrySource builds the (optional) registry source from the
// layered config, or nil when no registry index is configured.
func (a *app) registrySource() source.Source {
	if a.cfg.RegistryIndexURL == "" {
		return nil
	}
	lockDir := filepath.Join(a.home.RegistryDir, "locks")
	extractDir := filepath.Join(a.home.RegistryDir, "src")
	_ = os.MkdirAll(lockDir, 0o755)
	_ = os.MkdirAll(extractDir, 0o755)
	return source.NewRegistrySource(a.cfg.RegistryIndexURL, source.HTTPFetcher{}, a.home.Tracker, lockDir, extractDir, manifest.LoadPackage)
}

// pathSourceTree walks pkg's path dependencies recursively, loading
// each one and collecting it alongside pkg, so every path-sourced
// package the resolver might touch already has a materialized
// pkgid.Package before Solve runs (path sources, unlike registries,
// have no separate download step).
func pathSourceTree(pkg pkgid.Package, loaded map[pkgid.PackageId]pkgid.Package) error {
	if _, ok := loaded[pkg.Summary.PackageId]; ok {
		return nil
	}
	loaded[pkg.Summary.PackageId] = pkg
	for _, dep := range pkg.Summary.Dependencies {
		if dep.Source.Kind != pkgid.SourceKindPath {
			continue
		}
		depPkg, err := manifest.LoadPackage(dep.Source.URL)
		if err != nil {
			return fmt.Errorf("load path dependency %q at %s: %w", dep.Name, dep.Source.URL, err)
		}
		if err := pathSourceTree(depPkg, loaded); err != nil {
			return err
		}
	}
	return nil
}

// buildRegistry composes the root package's own PathSource over every
// path dependency's PathSource, one GitSource per distinct git
// dependency, and, if configured, a RegistrySource, the way §4.1
// describes composing sources with OverlaySource.
func (a *app) buildRegistry() (source.Source, map[pkgid.PackageId]pkgid.Package, error) {
	loaded := make(map[pkgid.PackageId]pkgid.Package)
	if err := pathSourceTree(a.root, loaded); err != nil {
		return nil, nil, err
	}

	var composed source.Source
	for _, pkg := range loaded {
		root := pkg.RootDir
		ps, err := source.NewPathSource(root, manifest.LoadPackage)
		if err != nil {
			return nil, nil, fmt.Errorf("path source %s: %w", root, err)
		}
		if composed == nil {
			composed = ps
		} else {
			composed = source.NewOverlaySource(composed, ps)
		}
	}

	gitSources, err := a.gitSources(loaded)
	if err != nil {
		return nil, nil, err
	}
	for _, gs := range gitSources {
		composed = source.NewOverlaySource(composed, gs)
	}

	if reg := a.registrySource(); reg != nil {
		composed = source.NewOverlaySource(composed, reg)
	}

	// composed is never nil: the root package always contributes at
	// least one PathSource. source.Source's Query method satisfies
	// resolver.Registry directly, with no adapter needed.
	return composed, loaded, nil
}

// gitSources builds one GitSource per distinct (URL, rev) pair named
// by a git dependency anywhere in loaded, keyed the way registrySource
// keys its single RegistrySource on the configured index URL. Each
// GitSource is immediately Update()d so its package is known before
// the resolver ever queries it.
func (a *app) gitSources(loaded map[pkgid.PackageId]pkgid.Package) ([]source.Source, error) {
	type gitKey struct{ url, rev string }
	seen := make(map[gitKey]bool)
	var out []source.Source

	for _, pkg := range loaded {
		for _, dep := range pkg.Summary.Dependencies {
			if dep.Source.Kind != pkgid.SourceKindGit {
				continue
			}
			key := gitKey{url: dep.Source.URL, rev: dep.Source.GitRef}
			if seen[key] {
				continue
			}
			seen[key] = true

			dbName := gitDBName(dep.Source.URL)
			dbDir := filepath.Join(a.home.GitDir, "db", dbName)
			lockDir := filepath.Join(a.home.GitDir, "locks", dbName)
			_ = os.MkdirAll(dbDir, 0o755)
			_ = os.MkdirAll(lockDir, 0o755)

			gs, err := source.NewGitSource(dep.Source.URL, dep.Source.GitRef, manifest.LoadPackage, a.home.Tracker, dbDir, lockDir)
			if err != nil {
				return nil, fmt.Errorf("git source %s: %w", dep.Source.URL, err)
			}
			if err := gs.Update(); err != nil {
				return nil, errors.NewSourceError(fmt.Sprintf("could not fetch git dependency %s", dep.Source.URL), err.Error(), "check network connectivity and that the rev/branch exists", err)
			}
			out = append(out, gs)
		}
	}
	return out, nil
}

// gitDBName derives a filesystem-safe directory name for a git
// dependency's bare mirror from its clone URL.
func gitDBName(gitURL string) string {
	name := strings.TrimSuffix(gitURL, ".git")
	name = strings.NewReplacer("/", "-", ":", "-", "@", "-").Replace(name)
	return name
}

// materialize resolves every package named in res against reg,
// returning a provider unitgraph.Build can query. Path-sourced
// packages are already in loaded; everything else goes through
// Download/FinishDownload.
func (a *app) materialize(reg source.Source, res *resolver.Resolve, loaded map[pkgid.PackageId]pkgid.Package) (unitgraph.MapProvider, error) {
	provider := make(unitgraph.MapProvider, len(res.Packages))
	for id := range res.Packages {
		if pkg, ok := loaded[id]; ok {
			provider[id] = pkg
			continue
		}
		mp, err := reg.Download(id)
		if err != nil {
			return nil, errors.NewSourceError(fmt.Sprintf("could not download %s", id), err.Error(), "check network connectivity and the configured registry index", err)
		}
		if mp.IsReady() {
			provider[id] = *mp.Ready
			continue
		}
		data, err := source.HTTPFetcher{}.Fetch(mp.Download.URL)
		if err != nil {
			return nil, errors.NewSourceError(fmt.Sprintf("could not fetch %s", id), err.Error(), "check network connectivity", err)
		}
		pkg, err := reg.FinishDownload(id, mp.Download.Descriptor, data)
		if err != nil {
			return nil, errors.NewSourceError(fmt.Sprintf("could not extract %s", id), err.Error(), "delete the corrupt cache entry and retry", err)
		}
		provider[id] = pkg
	}
	return provider, nil
}

func (a *app) cacheGC(policy cachetracker.Policy) (*cachetracker.Result, error) {
	return a.home.Tracker.GC(policy)
}

func (a *app) cacheStatus() (cachetracker.Status, error) {
	return a.home.Tracker.Status()
}
