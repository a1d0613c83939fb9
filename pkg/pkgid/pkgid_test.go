// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package pkgid

import (
	"testing"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceId_String(t *testing.T) {
	tests := []struct {
		name string
		src  SourceId
		want string
	}{
		{"path", SourceId{Kind: SourceKindPath, URL: "/home/me/proj"}, "path+/home/me/proj"},
		{"git with ref", SourceId{Kind: SourceKindGit, URL: "https://example.com/repo.git", GitRef: "abc123"}, "git+https://example.com/repo.git?rev=abc123"},
		{"git without ref", SourceId{Kind: SourceKindGit, URL: "https://example.com/repo.git"}, "git+https://example.com/repo.git"},
		{"registry", SourceId{Kind: SourceKindRegistry, URL: "https://crates.example/index"}, "registry+https://crates.example/index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.src.String())
		})
	}
}

func TestPackageId_Equality(t *testing.T) {
	v1 := semver.MustParse("1.0.0")
	a := PackageId{Name: "serde", Version: v1, Source: SourceId{Kind: SourceKindRegistry, URL: "https://a"}}
	b := PackageId{Name: "serde", Version: v1, Source: SourceId{Kind: SourceKindRegistry, URL: "https://a"}}
	c := PackageId{Name: "serde", Version: v1, Source: SourceId{Kind: SourceKindRegistry, URL: "https://b"}}

	assert.Equal(t, a, b, "identical fields must compare equal")
	assert.NotEqual(t, a, c, "different source URL must not compare equal")
}

func TestDependency_ExternName(t *testing.T) {
	tests := []struct {
		name string
		dep  Dependency
		want string
	}{
		{"plain hyphenated name", Dependency{Name: "serde-json"}, "serde_json"},
		{"explicit rename", Dependency{Name: "serde-json", ExplicitRename: "json"}, "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dep.ExternName())
		})
	}
}

func TestSummary_FeatureClosure(t *testing.T) {
	s := Summary{
		Features: map[string][]string{
			"default": {"std"},
			"std":     {"alloc"},
			"alloc":   {},
			"derive":  {"dep:serde_derive"},
			"full":    {"derive", "serde/std"},
		},
	}

	t.Run("default only", func(t *testing.T) {
		got := s.FeatureClosure(nil, true)
		assert.True(t, got["default"])
		assert.True(t, got["std"])
		assert.True(t, got["alloc"])
		assert.False(t, got["derive"])
	})

	t.Run("no default features, explicit request", func(t *testing.T) {
		got := s.FeatureClosure([]string{"full"}, false)
		assert.False(t, got["default"])
		assert.True(t, got["full"])
		assert.True(t, got["derive"])
		assert.True(t, got["std"], "name/feature syntax should activate the feature-side name in this closure")
	})
}

func TestPlatform_Matches(t *testing.T) {
	tests := []struct {
		name   string
		p      Platform
		triple string
		want   bool
	}{
		{"empty matches everything", "", "x86_64-unknown-linux-gnu", true},
		{"exact triple", "x86_64-pc-windows-msvc", "x86_64-unknown-linux-gnu", false},
		{"cfg hint matches", `cfg(target_os = "linux")`, "x86_64-unknown-linux-gnu", true},
		{"cfg hint mismatch", `cfg(target_os = "windows")`, "x86_64-unknown-linux-gnu", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Matches(tt.triple))
		})
	}
}

func TestCompileKind(t *testing.T) {
	require.True(t, Host().IsHost)
	target := ForTarget("aarch64-apple-darwin")
	require.False(t, target.IsHost)
	assert.Equal(t, "aarch64-apple-darwin", target.String())
}

func TestCompileMode_IsAnyTest(t *testing.T) {
	assert.True(t, ModeTest.IsAnyTest())
	assert.True(t, ModeBench.IsAnyTest())
	assert.True(t, ModeDoctest.IsAnyTest())
	assert.True(t, ModeCheckTest.IsAnyTest())
	assert.False(t, ModeBuild.IsAnyTest())
	assert.False(t, ModeDoc.IsAnyTest())
}

func TestPackage_Target(t *testing.T) {
	pkg := Package{
		Targets: []Target{
			{Kind: TargetLib, Name: "serde", CrateTypes: []CrateType{CrateTypeRlib}},
			{Kind: TargetBin, Name: "serde-cli"},
		},
	}
	lib, ok := pkg.Target(TargetLib, "serde")
	require.True(t, ok)
	assert.Equal(t, TargetLib, lib.Kind)

	_, ok = pkg.Target(TargetBin, "missing")
	assert.False(t, ok)
}
