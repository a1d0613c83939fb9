// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cargo-core/internal/bootstrap"
	"github.com/kraklabs/cargo-core/internal/errors"
	"github.com/kraklabs/cargo-core/internal/output"
	"github.com/kraklabs/cargo-core/internal/ui"
	"github.com/kraklabs/cargo-core/pkg/cachetracker"
)

func runClean(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	gc := fs.Bool("gc", false, "Also evict stale entries from the global cache")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cargo-core clean [options]

Drop every persisted fingerprint for both profiles, forcing the next
build to recompile from scratch.

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

	targetDir := a.cfg.TargetDir
	if !filepath.IsAbs(targetDir) {
		targetDir = filepath.Join(a.rootDir, targetDir)
	}

	removed := 0
	for _, profileDir := range []string{"debug", "release"} {
		fpDir := filepath.Join(targetDir, profileDir, ".fingerprint")
		if _, statErr := os.Stat(fpDir); statErr != nil {
			continue
		}
		if rmErr := os.RemoveAll(fpDir); rmErr != nil {
			errors.FatalError(errors.NewCacheError("could not remove fingerprint cache", rmErr.Error(), "check write permissions on "+fpDir, rmErr), globals.JSON)
		}
		removed++
	}

	var gcResult *cachetracker.Result
	if *gc {
		policy := gcPolicy(a.cfg.GC)
		gcResult, err = a.cacheGC(policy)
		if err != nil {
			errors.FatalError(errors.NewCacheError("could not run global cache gc", err.Error(), "check permissions on CARGO_HOME", err), globals.JSON)
		}
	}

	if globals.JSON {
		payload := struct {
			FingerprintDirsRemoved int                 `json:"fingerprint_dirs_removed"`
			GC                     *cachetracker.Result `json:"gc,omitempty"`
		}{FingerprintDirsRemoved: removed, GC: gcResult}
		if err := output.JSON(payload); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	if !globals.Quiet {
		ui.Success(fmt.Sprintf("Removed %d fingerprint cache(s)", removed))
		if gcResult != nil {
			ui.Success(fmt.Sprintf("Evicted %d global cache entries (%d bytes)", len(gcResult.Removed), gcResult.BytesFreed))
		}
	}
}

func gcPolicy(cfg bootstrap.GCConfig) cachetracker.Policy {
	return cachetracker.Policy{
		MaxAge:        time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		MaxCrateBytes: cfg.MaxCrateBytes,
		MaxSrcBytes:   cfg.MaxSrcBytes,
		MaxGitBytes:   cfg.MaxGitBytes,
	}
}
