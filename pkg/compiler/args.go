// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package compiler drives the rustc-like compiler contract of §6: it
// builds the CLI invocation for one Unit, runs the child process, and
// parses back its dep-info and diagnostic output. It also runs the
// build-script contract: the env vars a `build.rs` binary expects and
// the `cargo:` directive lines it emits on stdout.
package compiler

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
	"github.com/kraklabs/cargo-core/pkg/unitgraph"
)

// Extern is one `--extern name=path` entry: the external crate name a
// dependency is visible under, and the path to its compiled artifact.
type Extern struct {
	Name string
	Path string
}

// BuildArgs constructs the rustc-like CLI argument list for u, in the
// order §6 lists them: crate root, --crate-name, --crate-type(s),
// --edition, --emit, -L paths, --extern per dependency, --cfg
// features, -C codegen options, --target, --out-dir.
func BuildArgs(u *unitgraph.Unit, target pkgid.Target, searchPaths []string, externs []Extern, outDir string, emit []string) []string {
	var args []string

	args = append(args, target.SrcPath)
	args = append(args, "--crate-name", crateName(target.Name))

	for _, ct := range target.CrateTypes {
		args = append(args, "--crate-type", string(ct))
	}

	if target.Edition != "" {
		args = append(args, "--edition", target.Edition)
	}

	if len(emit) > 0 {
		args = append(args, "--emit", joinComma(emit))
	}

	for _, p := range searchPaths {
		args = append(args, "-L", p)
	}

	sortedExterns := make([]Extern, len(externs))
	copy(sortedExterns, externs)
	sort.Slice(sortedExterns, func(i, j int) bool { return sortedExterns[i].Name < sortedExterns[j].Name })
	for _, e := range sortedExterns {
		args = append(args, "--extern", fmt.Sprintf("%s=%s", e.Name, e.Path))
	}

	for _, name := range sortedFeatureNames(u.Features) {
		if u.Features[name] {
			args = append(args, "--cfg", fmt.Sprintf("feature=%q", name))
		}
	}

	args = append(args, codegenArgs(u.Profile)...)

	if !u.Kind.IsHost {
		args = append(args, "--target", u.Kind.Triple)
	}

	args = append(args, "--out-dir", outDir)
	args = append(args, "--error-format=json")

	return args
}

func crateName(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '-' {
			out[i] = '_'
		} else {
			out[i] = name[i]
		}
	}
	return string(out)
}

func codegenArgs(p pkgid.Profile) []string {
	var args []string
	if p.OptLevel != "" {
		args = append(args, "-C", "opt-level="+p.OptLevel)
	}
	args = append(args, "-C", "debuginfo="+boolToDebugInfo(p.Debug))
	args = append(args, "-C", "lto="+p.LTO.String())
	if p.CodegenUnits > 0 {
		args = append(args, "-C", "codegen-units="+strconv.Itoa(p.CodegenUnits))
	}
	if p.Incremental {
		args = append(args, "-C", "incremental=yes")
	}
	if p.Panic != "" {
		args = append(args, "-C", "panic="+p.Panic)
	}
	if p.OverflowChecks {
		args = append(args, "-C", "overflow-checks=yes")
	}
	if p.Rpath {
		args = append(args, "-C", "rpath=yes")
	}
	if p.Strip != "" && p.Strip != "none" {
		args = append(args, "-C", "strip="+p.Strip)
	}
	return args
}

func boolToDebugInfo(debug bool) string {
	if debug {
		return "2"
	}
	return "0"
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func sortedFeatureNames(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
