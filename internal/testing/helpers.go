// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package testing

import (
	"testing"

	"github.com/blang/semver/v4"

	"github.com/kraklabs/cargo-core/internal/bootstrap"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// SetupCargoHome creates an isolated CARGO_HOME (registry/git dirs plus
// an open global cache tracker) rooted at a fresh temp directory. The
// tracker is closed automatically when the test finishes.
//
// Example:
//
//	func TestSomething(t *testing.T) {
//	    home := testing.SetupCargoHome(t)
//	    // home.Tracker is ready to use
//	}
func SetupCargoHome(t *testing.T) *bootstrap.Home {
	t.Helper()

	home, err := bootstrap.Init(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to init cargo home: %v", err)
	}
	t.Cleanup(func() {
		_ = home.Close()
	})
	return home
}

// MustVersion parses a semver string and fails the test on error,
// instead of forcing every fixture builder to thread an error return
// through call sites that can never legitimately fail.
func MustVersion(t *testing.T, v string) semver.Version {
	t.Helper()
	parsed, err := semver.Parse(v)
	if err != nil {
		t.Fatalf("invalid version %q: %v", v, err)
	}
	return parsed
}

// MustRange parses a semver range string and fails the test on error.
func MustRange(t *testing.T, r string) semver.Range {
	t.Helper()
	parsed, err := semver.ParseRange(r)
	if err != nil {
		t.Fatalf("invalid requirement %q: %v", r, err)
	}
	return parsed
}

// RegistrySourceID returns a registry-kind fixture SourceId for url,
// stable enough to use as a map key across a test body.
func RegistrySourceID(url string) pkgid.SourceId {
	return pkgid.SourceId{Kind: pkgid.SourceKindRegistry, URL: url}
}

// NewSummary builds a minimal fixture Summary with no dependencies and
// no features, for tests that only need identity and version.
func NewSummary(t *testing.T, name, version string, source pkgid.SourceId) pkgid.Summary {
	t.Helper()
	return pkgid.Summary{
		PackageId: pkgid.PackageId{
			Name:    name,
			Version: MustVersion(t, version),
			Source:  source,
		},
		Features: map[string][]string{},
	}
}

// WithDependency returns a copy of s with dep appended to its
// Dependencies list, for building up fixture summaries one dependency
// at a time in table-driven tests.
func WithDependency(s pkgid.Summary, dep pkgid.Dependency) pkgid.Summary {
	out := s
	out.Dependencies = append(append([]pkgid.Dependency(nil), s.Dependencies...), dep)
	return out
}

// NewDependency builds a normal, default-featured, required dependency
// requirement for fixture summaries.
func NewDependency(t *testing.T, name, requirement string, source pkgid.SourceId) pkgid.Dependency {
	t.Helper()
	return pkgid.Dependency{
		Name:            name,
		Requirement:     MustRange(t, requirement),
		RequirementText: requirement,
		Source:          source,
		Kind:            pkgid.KindNormal,
		DefaultFeatures: true,
	}
}
