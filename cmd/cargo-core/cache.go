// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cargo-core/internal/errors"
	"github.com/kraklabs/cargo-core/internal/output"
	"github.com/kraklabs/cargo-core/internal/ui"
)

func runCache(args []string, globals GlobalFlags) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: cargo-core cache <gc|status>")
		os.Exit(1)
	}

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "gc":
		runCacheGC(rest, globals)
	case "status":
		runCacheStatus(rest, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown cache subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runCacheGC(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("cache gc", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: cargo-core cache gc [options]\n\nEvict stale entries from the global registry/git cache.")
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

	result, err := a.cacheGC(gcPolicy(a.cfg.GC))
	if err != nil {
		errors.FatalError(errors.NewCacheError("could not run global cache gc", err.Error(), "check permissions on CARGO_HOME", err), globals.JSON)
	}

	if globals.JSON {
		if err := output.JSON(result); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	if !globals.Quiet {
		ui.Success(fmt.Sprintf("Evicted %d entries, freed %d bytes", len(result.Removed), result.BytesFreed))
		for _, entry := range result.Removed {
			fmt.Println(ui.DimText(fmt.Sprintf("  %s %s", entry.Kind, entry.Key)))
		}
	}
}

func runCacheStatus(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("cache status", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: cargo-core cache status\n\nSummarize global cache usage without evicting anything.")
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

	status, err := a.cacheStatus()
	if err != nil {
		errors.FatalError(errors.NewCacheError("could not read cache status", err.Error(), "check permissions on CARGO_HOME", err), globals.JSON)
	}

	if globals.JSON {
		if err := output.JSON(status); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	if !globals.Quiet {
		ui.Header("Cache status")
		ui.Success(fmt.Sprintf("%d entries, %d bytes tracked", status.EntryCount, status.TotalBytes))
	}
}
