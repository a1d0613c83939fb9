// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// BuildScriptEnv constructs the environment a compiled `build.rs`
// binary runs with, per §6: CARGO_MANIFEST_DIR, CARGO_PKG_*, HOST,
// TARGET, PROFILE, OPT_LEVEL, DEBUG, NUM_JOBS, OUT_DIR, one
// CARGO_FEATURE_<NAME>=1 per active feature, one CARGO_CFG_<KEY>=
// <VALUE> per target cfg, plus any DEP_<NAME>_<KEY> vars inherited
// from upstream build scripts.
func BuildScriptEnv(pkg pkgid.Package, profile pkgid.Profile, features map[string]bool, hostTriple, targetTriple, manifestDir, outDir string, numJobs int, cfgs map[string]string, depEnv map[string]string) []string {
	var env []string
	set := func(key, value string) { env = append(env, key+"="+value) }

	set("CARGO_MANIFEST_DIR", manifestDir)
	set("CARGO_PKG_NAME", pkg.Summary.PackageId.Name)
	set("CARGO_PKG_VERSION", pkg.Summary.PackageId.Version.String())
	set("CARGO_PKG_VERSION_MAJOR", strconv.FormatUint(pkg.Summary.PackageId.Version.Major, 10))
	set("CARGO_PKG_VERSION_MINOR", strconv.FormatUint(pkg.Summary.PackageId.Version.Minor, 10))
	set("CARGO_PKG_VERSION_PATCH", strconv.FormatUint(pkg.Summary.PackageId.Version.Patch, 10))

	set("HOST", hostTriple)
	set("TARGET", targetTriple)
	set("PROFILE", profile.Name)
	set("OPT_LEVEL", profile.OptLevel)
	set("DEBUG", strconv.FormatBool(profile.Debug))
	set("NUM_JOBS", strconv.Itoa(numJobs))
	set("OUT_DIR", outDir)

	for _, name := range sortedFeatureNames(features) {
		if features[name] {
			set("CARGO_FEATURE_"+featureEnvName(name), "1")
		}
	}

	cfgKeys := make([]string, 0, len(cfgs))
	for k := range cfgs {
		cfgKeys = append(cfgKeys, k)
	}
	sort.Strings(cfgKeys)
	for _, k := range cfgKeys {
		set("CARGO_CFG_"+strings.ToUpper(k), cfgs[k])
	}

	depKeys := make([]string, 0, len(depEnv))
	for k := range depEnv {
		depKeys = append(depKeys, k)
	}
	sort.Strings(depKeys)
	for _, k := range depKeys {
		set(k, depEnv[k])
	}

	return env
}

func featureEnvName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// RunBuildScript executes the compiled build-script binary in
// manifestDir with env, and parses its stdout into Directives.
func RunBuildScript(ctx context.Context, binary, manifestDir string, env []string) (Directives, error) {
	cmd := exec.CommandContext(ctx, binary)
	cmd.Dir = manifestDir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Directives{}, fmt.Errorf("run build script %s: %s", binary, stderr.String())
	}

	directives, _ := ParseDirectives(stdout.Bytes())
	return directives, nil
}
