// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

func TestBuildScriptEnv_IncludesPackageAndFeatureVars(t *testing.T) {
	pkg := pkgid.Package{Summary: pkgid.Summary{PackageId: pkgid.PackageId{Name: "widget", Version: semver.MustParse("1.2.3")}}}
	env := BuildScriptEnv(pkg, pkgid.Profile{Name: "release", OptLevel: "3"}, map[string]bool{"async": true}, "x86_64-unknown-linux-gnu", "x86_64-unknown-linux-gnu", "/pkg", "/pkg/out", 4, nil, nil)

	require.Contains(t, env, "CARGO_PKG_NAME=widget")
	require.Contains(t, env, "CARGO_PKG_VERSION=1.2.3")
	require.Contains(t, env, "CARGO_FEATURE_ASYNC=1")
	require.Contains(t, env, "OUT_DIR=/pkg/out")
}

func TestBuildScriptEnv_OmitsInactiveFeatures(t *testing.T) {
	pkg := pkgid.Package{Summary: pkgid.Summary{PackageId: pkgid.PackageId{Name: "widget", Version: semver.MustParse("1.0.0")}}}
	env := BuildScriptEnv(pkg, pkgid.Profile{}, map[string]bool{"off": false}, "h", "t", "/pkg", "/out", 1, nil, nil)

	for _, kv := range env {
		require.NotContains(t, kv, "CARGO_FEATURE_OFF")
	}
}

func TestBuildScriptEnv_PropagatesUpstreamDepEnv(t *testing.T) {
	pkg := pkgid.Package{Summary: pkgid.Summary{PackageId: pkgid.PackageId{Name: "widget", Version: semver.MustParse("1.0.0")}}}
	env := BuildScriptEnv(pkg, pkgid.Profile{}, nil, "h", "t", "/pkg", "/out", 1, nil, map[string]string{"DEP_ZLIB_ROOT": "/usr"})
	require.Contains(t, env, "DEP_ZLIB_ROOT=/usr")
}

func TestRunBuildScript_ParsesDirectivesFromStdout(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "build.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'cargo:rustc-link-lib=z'\n"), 0o755))

	directives, err := RunBuildScript(context.Background(), script, dir, os.Environ())
	require.NoError(t, err)
	require.Equal(t, []string{"z"}, directives.LinkLib)
}

func TestRunBuildScript_NonZeroExitErrors(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "build.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	_, err := RunBuildScript(context.Background(), script, dir, os.Environ())
	require.Error(t, err)
}
