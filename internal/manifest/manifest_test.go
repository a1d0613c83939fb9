// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

func writeProject(t *testing.T, toml string, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(toml), 0o644))
	for rel, contents := range files {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	}
	return dir
}

func TestLoadPackage_ParsesPackageIdentity(t *testing.T) {
	dir := writeProject(t, `
[package]
name = "widget"
version = "1.2.3"
edition = "2021"
`, map[string]string{"src/lib.rs": "// empty"})

	pkg, err := LoadPackage(dir)
	require.NoError(t, err)
	require.Equal(t, "widget", pkg.Summary.PackageId.Name)
	require.Equal(t, "1.2.3", pkg.Summary.PackageId.Version.String())
	require.Equal(t, pkgid.SourceKindPath, pkg.Summary.PackageId.Source.Kind)
}

func TestLoadPackage_ParsesBareAndTableDependencies(t *testing.T) {
	dir := writeProject(t, `
[package]
name = "widget"
version = "0.1.0"

[dependencies]
serde = "1.0"
rand = { version = "0.8", optional = true, default-features = false }

[dev-dependencies]
criterion = "0.5"
`, map[string]string{"src/lib.rs": ""})

	pkg, err := LoadPackage(dir)
	require.NoError(t, err)
	require.Len(t, pkg.Summary.Dependencies, 3)

	byName := make(map[string]pkgid.Dependency)
	for _, d := range pkg.Summary.Dependencies {
		byName[d.Name] = d
	}

	require.True(t, byName["serde"].DefaultFeatures)
	require.Equal(t, pkgid.KindNormal, byName["serde"].Kind)

	require.True(t, byName["rand"].Optional)
	require.False(t, byName["rand"].DefaultFeatures)

	require.Equal(t, pkgid.KindDev, byName["criterion"].Kind)
}

func TestLoadPackage_PathDependencyResolvesRelativeToManifestDir(t *testing.T) {
	dir := writeProject(t, `
[package]
name = "widget"
version = "0.1.0"

[dependencies]
helper = { path = "../helper" }
`, map[string]string{"src/lib.rs": ""})

	pkg, err := LoadPackage(dir)
	require.NoError(t, err)
	require.Equal(t, pkgid.SourceKindPath, pkg.Summary.Dependencies[0].Source.Kind)
	require.Equal(t, filepath.Clean(filepath.Join(dir, "../helper")), pkg.Summary.Dependencies[0].Source.URL)
}

func TestLoadPackage_DiscoversLibBinAndBuildScriptTargets(t *testing.T) {
	dir := writeProject(t, `
[package]
name = "widget"
version = "0.1.0"
`, map[string]string{
		"src/lib.rs":     "",
		"src/main.rs":    "",
		"src/bin/tool.rs": "",
		"build.rs":       "",
	})

	pkg, err := LoadPackage(dir)
	require.NoError(t, err)
	require.True(t, pkg.HasBuildScript)

	kinds := make(map[pkgid.TargetKind]int)
	for _, target := range pkg.Targets {
		kinds[target.Kind]++
	}
	require.Equal(t, 1, kinds[pkgid.TargetLib])
	require.Equal(t, 2, kinds[pkgid.TargetBin]) // widget (main.rs) + tool (src/bin)
	require.Equal(t, 1, kinds[pkgid.TargetBuildScript])
}

func TestResolveProfile_ReleaseOverridesOptLevel(t *testing.T) {
	f := File{Profile: map[string]ProfileSpec{
		"release": {OptLevel: "2"},
	}}
	p := ResolveProfile(f, "release")
	require.Equal(t, "2", p.OptLevel)
	require.False(t, p.Debug)
}

func TestResolveProfile_DevDefaultsHaveOverflowChecks(t *testing.T) {
	p := ResolveProfile(File{}, "dev")
	require.True(t, p.OverflowChecks)
	require.True(t, p.Incremental)
}
