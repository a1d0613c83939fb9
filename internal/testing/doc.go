// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package testing provides fixture builders shared across the core's
// unit tests: isolated CARGO_HOME trees, fixture Summary/Dependency
// values, and semver parsing helpers that fail the test instead of
// forcing every call site to thread an error return for inputs that
// are constants in the test source.
//
// # Quick start
//
//	func TestSomething(t *testing.T) {
//	    home := testing.SetupCargoHome(t)
//	    src := testing.RegistrySourceID("https://example.invalid/index")
//	    left := testing.NewSummary(t, "left-pad", "1.2.0", src)
//	    app := testing.WithDependency(
//	        testing.NewSummary(t, "app", "0.1.0", src),
//	        testing.NewDependency(t, "left-pad", ">=1.0.0", src),
//	    )
//	    // ... feed app/left into resolver.Solve via an IndexRegistry
//	}
package testing
