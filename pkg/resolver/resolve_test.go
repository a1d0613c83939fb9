// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package resolver

import (
	"testing"

	"github.com/blang/semver/v4"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
	"github.com/stretchr/testify/require"
)

func regSrc() pkgid.SourceId {
	return pkgid.SourceId{Kind: pkgid.SourceKindRegistry, URL: "https://example.invalid/index"}
}

func mustRange(t *testing.T, s string) semver.Range {
	t.Helper()
	r, err := semver.ParseRange(s)
	require.NoError(t, err)
	return r
}

func summary(t *testing.T, name, version string, deps ...pkgid.Dependency) pkgid.Summary {
	t.Helper()
	return pkgid.Summary{
		PackageId:    pkgid.PackageId{Name: name, Version: semver.MustParse(version), Source: regSrc()},
		Dependencies: deps,
		Features:     map[string][]string{"default": {}},
	}
}

func dep(t *testing.T, name, rangeExpr string, kind pkgid.DependencyKind) pkgid.Dependency {
	t.Helper()
	return pkgid.Dependency{
		Name:            name,
		Requirement:     mustRange(t, rangeExpr),
		RequirementText: rangeExpr,
		Source:          regSrc(),
		Kind:            kind,
		DefaultFeatures: true,
	}
}

// S1-ish: a simple build with no conflicts resolves cleanly and
// picks the newest matching version.
func TestSolve_SimpleResolvesNewest(t *testing.T) {
	root := summary(t, "app", "0.1.0", dep(t, "left-pad", ">=1.0.0", pkgid.KindNormal))
	candidates := []pkgid.Summary{
		summary(t, "left-pad", "1.0.0"),
		summary(t, "left-pad", "1.2.0"),
		summary(t, "left-pad", "1.1.0"),
	}
	reg := NewIndexRegistry(candidates)

	resolved, err := Solve([]pkgid.Summary{root}, reg, Options{})
	require.NoError(t, err)

	var picked pkgid.PackageId
	for id := range resolved.Packages {
		if id.Name == "left-pad" {
			picked = id
		}
	}
	require.Equal(t, "1.2.0", picked.Version.String())
}

// A diamond dependency where both paths agree on a compatible version
// must resolve to that single shared version.
func TestSolve_DiamondAgrees(t *testing.T) {
	root := summary(t, "app", "0.1.0",
		dep(t, "a", ">=1.0.0", pkgid.KindNormal),
		dep(t, "b", ">=1.0.0", pkgid.KindNormal),
	)
	a := summary(t, "a", "1.0.0", dep(t, "shared", ">=1.0.0 <2.0.0", pkgid.KindNormal))
	b := summary(t, "b", "1.0.0", dep(t, "shared", ">=1.5.0 <2.0.0", pkgid.KindNormal))
	shared1 := summary(t, "shared", "1.0.0")
	shared2 := summary(t, "shared", "1.9.0")

	reg := NewIndexRegistry([]pkgid.Summary{a, b, shared1, shared2})
	resolved, err := Solve([]pkgid.Summary{root}, reg, Options{})
	require.NoError(t, err)

	count := 0
	for id := range resolved.Packages {
		if id.Name == "shared" {
			count++
			require.Equal(t, "1.9.0", id.Version.String(), "both requirements are satisfied only by 1.9.0")
		}
	}
	require.Equal(t, 1, count, "a single shared version must be chosen, not one per requirer")
}

// A diamond dependency with genuinely incompatible requirements must
// fail with a ResolveError, and the conflict cache must have recorded
// at least one conflicting activation set.
func TestSolve_DiamondConflictFails(t *testing.T) {
	root := summary(t, "app", "0.1.0",
		dep(t, "a", ">=1.0.0", pkgid.KindNormal),
		dep(t, "b", ">=1.0.0", pkgid.KindNormal),
	)
	a := summary(t, "a", "1.0.0", dep(t, "shared", ">=1.0.0 <2.0.0", pkgid.KindNormal))
	b := summary(t, "b", "1.0.0", dep(t, "shared", ">=2.0.0 <3.0.0", pkgid.KindNormal))
	shared1 := summary(t, "shared", "1.5.0")
	shared2 := summary(t, "shared", "2.3.0")

	reg := NewIndexRegistry([]pkgid.Summary{a, b, shared1, shared2})
	_, err := Solve([]pkgid.Summary{root}, reg, Options{})
	require.Error(t, err)
}

// Dev-dependencies of a transitive (non-root) package must not be
// included in the resolved set at all, and by default are excluded
// even for the root.
func TestSolve_DevDependenciesExcludedByDefault(t *testing.T) {
	root := summary(t, "app", "0.1.0", dep(t, "lib", ">=1.0.0", pkgid.KindNormal))
	lib := summary(t, "lib", "1.0.0", dep(t, "dev-only", ">=1.0.0", pkgid.KindDev))
	devOnly := summary(t, "dev-only", "1.0.0")

	reg := NewIndexRegistry([]pkgid.Summary{lib, devOnly})
	resolved, err := Solve([]pkgid.Summary{root}, reg, Options{})
	require.NoError(t, err)

	for id := range resolved.Packages {
		require.NotEqual(t, "dev-only", id.Name, "transitive dev-dependencies must never be included")
	}
}

// A locked version should be preferred over a newer candidate when it
// still satisfies the requirement.
func TestSolve_PrefersLockedVersion(t *testing.T) {
	root := summary(t, "app", "0.1.0", dep(t, "left-pad", ">=1.0.0", pkgid.KindNormal))
	candidates := []pkgid.Summary{
		summary(t, "left-pad", "1.0.0"),
		summary(t, "left-pad", "1.2.0"),
	}
	reg := NewIndexRegistry(candidates)

	locked := pkgid.PackageId{Name: "left-pad", Version: semver.MustParse("1.0.0"), Source: regSrc()}
	resolved, err := Solve([]pkgid.Summary{root}, reg, Options{Locked: map[string]pkgid.PackageId{"left-pad": locked}})
	require.NoError(t, err)

	var picked pkgid.PackageId
	for id := range resolved.Packages {
		if id.Name == "left-pad" {
			picked = id
		}
	}
	require.Equal(t, "1.0.0", picked.Version.String())
}

func TestConflictCache_IsKnownConflict(t *testing.T) {
	c := NewConflictCache()
	v1 := semver.MustParse("1.0.0")
	v2 := semver.MustParse("2.0.0")

	c.Record("shared", activationSet{"a": v1})

	require.True(t, c.IsKnownConflict("shared", activationSet{"a": v1, "b": v2}), "a superset of a recorded conflict set is still a conflict")
	require.False(t, c.IsKnownConflict("shared", activationSet{"a": v2}), "a different version of the offending package is not known to conflict")
	require.False(t, c.IsKnownConflict("other-dep", activationSet{"a": v1}), "conflicts are keyed per dependency name")
}
