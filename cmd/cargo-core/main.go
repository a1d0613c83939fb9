// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package main implements the cargo-core CLI: a thin driver over the
// resolver, unit graph builder, scheduler, and fingerprint cache that
// gives the library a runtime shape.
//
// Usage (global flags such as --dir and --json go before the command):
//
//	cargo-core [--dir path] resolve           Resolve dependencies, write Cargo.lock
//	cargo-core build [--release] [-j N]       Build the unit graph and run the scheduler
//	cargo-core [--json] plan                  Print the unit graph without building
//	cargo-core clean [--gc]                   Drop fingerprints, optionally run cache gc
//	cargo-core cache gc                       Evict stale global cache entries
//	cargo-core cache status                   Summarize global cache usage
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kraklabs/cargo-core/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version and exit")
		jsonOut     = flag.Bool("json", false, "Emit machine-readable JSON output")
		quiet       = flag.Bool("quiet", false, "Suppress progress and informational output")
		noColor     = flag.Bool("no-color", false, "Disable colored output")
		dir         = flag.String("dir", "", "Project directory (default: current directory)")
		verbose     = flag.Int("v", 0, "Verbosity level (0-2)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `cargo-core - dependency resolver, unit graph, and build scheduler

Usage:
  cargo-core [global options] <command> [options]

Commands:
  resolve       Resolve dependencies and write Cargo.lock
  build         Build the unit graph and run the scheduler
  plan          Print the unit graph without building
  clean         Drop cached fingerprints
  cache         Manage the global cache tracker (gc, status)

Global Options:
  --dir         Project directory (default: current directory)
  --json        Emit machine-readable JSON output
  --quiet       Suppress progress and informational output
  --no-color    Disable colored output
  --version     Show version and exit

Examples:
  cargo-core resolve
  cargo-core build --release -j 4
  cargo-core --json plan
  cargo-core cache gc
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("cargo-core version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	ui.InitColors(*noColor)

	globals := GlobalFlags{
		JSON:    *jsonOut,
		Quiet:   *quiet,
		NoColor: *noColor,
		Verbose: *verbose,
		Dir:     *dir,
	}
	if globals.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cargo-core: %v\n", err)
			os.Exit(1)
		}
		globals.Dir = wd
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "resolve":
		runResolve(cmdArgs, globals)
	case "build":
		runBuild(cmdArgs, globals)
	case "plan":
		runPlan(cmdArgs, globals)
	case "clean":
		runClean(cmdArgs, globals)
	case "cache":
		runCache(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
