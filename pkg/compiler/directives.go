// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package compiler

import (
	"bufio"
	"bytes"
	"strings"
)

// Directives is the parsed effect of a build script's stdout: every
// `cargo:` key the build-script contract defines, plus an Unknown map
// for keys downstream packages read as DEP_<NAME>_<KEY>.
type Directives struct {
	Warnings          []string
	RerunIfChanged    []string
	RerunIfEnvChanged []string
	LinkLib           []string
	LinkSearch        []string
	RustcCfg          []string
	RustcEnv          []string
	RustcFlags        []string
	Unknown           map[string]string
}

// ParseDirectives scans stdout line by line. A line not starting with
// "cargo:" is not a directive and is returned unchanged in the second
// result, the slice of non-directive lines — per the recorded decision
// that every "cargo:"-prefixed line is a directive and nothing else
// is, with no assumption that directive output is buffered separately
// from the script's own stdout.
func ParseDirectives(stdout []byte) (Directives, []string) {
	d := Directives{Unknown: make(map[string]string)}
	var other []string

	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		rest, ok := strings.CutPrefix(line, "cargo:")
		if !ok {
			other = append(other, line)
			continue
		}

		key, value, _ := strings.Cut(rest, "=")
		switch key {
		case "warning":
			d.Warnings = append(d.Warnings, value)
		case "rerun-if-changed":
			d.RerunIfChanged = append(d.RerunIfChanged, value)
		case "rerun-if-env-changed":
			d.RerunIfEnvChanged = append(d.RerunIfEnvChanged, value)
		case "rustc-link-lib":
			d.LinkLib = append(d.LinkLib, value)
		case "rustc-link-search":
			d.LinkSearch = append(d.LinkSearch, value)
		case "rustc-cfg":
			d.RustcCfg = append(d.RustcCfg, value)
		case "rustc-env":
			d.RustcEnv = append(d.RustcEnv, value)
		case "rustc-flags":
			d.RustcFlags = append(d.RustcFlags, value)
		default:
			d.Unknown[key] = value
		}
	}

	return d, other
}

// DepMetadata renders d's Unknown keys as the DEP_<NAME>_<KEY>
// environment variables a downstream package's own build script sees,
// where name is the upstream package's crate name.
func DepMetadata(name string, d Directives) map[string]string {
	out := make(map[string]string, len(d.Unknown))
	upper := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	for key, value := range d.Unknown {
		envKey := "DEP_" + upper + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		out[envKey] = value
	}
	return out
}
