// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cargo-core/internal/errors"
	"github.com/kraklabs/cargo-core/internal/output"
	"github.com/kraklabs/cargo-core/internal/ui"
	"github.com/kraklabs/cargo-core/pkg/lockfile"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
	"github.com/kraklabs/cargo-core/pkg/resolver"
)

func runResolve(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	includeDev := fs.Bool("dev", false, "Include dev-dependencies of the root package")
	allowPrerelease := fs.Bool("allow-prerelease", false, "Allow pre-release candidates")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cargo-core resolve [options]

Resolve the project's dependency graph and write Cargo.lock.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	a, err := newApp(globals)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	defer a.Close()

	res, err := doResolve(a, *includeDev, *allowPrerelease)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	lockPath := filepath.Join(a.rootDir, "Cargo.lock")
	prevMeta := map[string]string{}
	if prev, err := lockfile.Read(lockPath); err == nil {
		prevMeta = prev.Metadata
	}
	doc := lockfile.Encode(res, prevMeta)
	if err := lockfile.Write(lockPath, doc); err != nil {
		errors.FatalError(errors.NewResolveError("could not write Cargo.lock", err.Error(), "check write permissions on "+a.rootDir, err), globals.JSON)
	}

	if globals.JSON {
		if err := output.JSON(doc); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	if !globals.Quiet {
		ui.Success(fmt.Sprintf("Resolved %d packages", len(res.Packages)))
	}
}

func doResolve(a *app, includeDev, allowPrerelease bool) (*resolver.Resolve, error) {
	reg, _, err := a.buildRegistry()
	if err != nil {
		return nil, errors.NewSourceError("could not assemble package sources", err.Error(), "check dependency paths in Cargo.toml", err)
	}
	return solveAgainst(a, reg, includeDev, allowPrerelease)
}

// solveAgainst runs the resolver against an already-built reg, so
// callers that also need the materialized loaded map (build, plan)
// can call a.buildRegistry() once and reuse it here.
func solveAgainst(a *app, reg resolver.Registry, includeDev, allowPrerelease bool) (*resolver.Resolve, error) {
	locked := map[string]pkgid.PackageId{}
	if prev, err := lockfile.Read(filepath.Join(a.rootDir, "Cargo.lock")); err == nil {
		if m, err := prev.Locked(); err == nil {
			locked = m
		}
	}

	res, err := resolver.Solve([]pkgid.Summary{a.root.Summary}, reg, resolver.Options{
		Locked:          locked,
		IncludeDev:      includeDev,
		AllowPrerelease: allowPrerelease,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
