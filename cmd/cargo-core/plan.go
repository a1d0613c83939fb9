// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/cargo-core/internal/errors"
	"github.com/kraklabs/cargo-core/internal/output"
	"github.com/kraklabs/cargo-core/internal/ui"
	"github.com/kraklabs/cargo-core/pkg/unitgraph"
)

func runPlan(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	release := fs.Bool("release", false, "Plan against the release profile")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cargo-core plan [options]

Print the unit graph that "build" would run, without compiling anything.

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

	profileName := "dev"
	if *release {
		profileName = "release"
	}

	graph, _, err := prepareBuild(a, profileName)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	dump := graph.Dump()

	if globals.JSON {
		if err := output.JSON(dump); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	printPlan(dump)
}

func printPlan(dump unitgraph.GraphDump) {
	roots := make(map[int]bool, len(dump.Roots))
	for _, r := range dump.Roots {
		roots[r] = true
	}
	for i, u := range dump.Units {
		marker := "  "
		if roots[i] {
			marker = "* "
		}
		line := fmt.Sprintf("%s[%d] %s %s (%s/%s)", marker, i, u.Package, u.Target, u.Kind, u.Mode)
		if len(u.Features) > 0 {
			line += " features=" + strings.Join(u.Features, ",")
		}
		fmt.Println(ui.DimText(line))
		for _, d := range u.Deps {
			fmt.Println(ui.DimText(fmt.Sprintf("      -> [%d] %s", d, dump.Units[d].Target)))
		}
	}
}
