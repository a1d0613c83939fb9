// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package unitgraph

import (
	"fmt"
	"sort"

	"github.com/kraklabs/cargo-core/internal/errors"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
	"github.com/kraklabs/cargo-core/pkg/resolver"
)

// PackageProvider resolves a PackageId to its materialized Package
// (Summary plus Target list), the way a downloaded Source entry would
// be looked up once the resolver has chosen a version.
type PackageProvider interface {
	Package(id pkgid.PackageId) (pkgid.Package, error)
}

// MapProvider is a PackageProvider backed by an in-memory map,
// sufficient for tests and for callers that have already materialized
// every package the Resolve touches.
type MapProvider map[pkgid.PackageId]pkgid.Package

func (m MapProvider) Package(id pkgid.PackageId) (pkgid.Package, error) {
	pkg, ok := m[id]
	if !ok {
		return pkgid.Package{}, fmt.Errorf("unitgraph: no materialized package for %s", id)
	}
	return pkg, nil
}

// Request describes the build intent the unit graph is constructed
// for.
type Request struct {
	Resolve *resolver.Resolve
	// RootPackages selects which of Resolve.Roots to build; nil means
	// every root.
	RootPackages []pkgid.PackageId
	Mode         pkgid.CompileMode
	Profile      pkgid.Profile
	HostKind     pkgid.CompileKind
	TargetKind   pkgid.CompileKind
	// TargetFilter narrows which Targets of a root package become root
	// Units; nil includes every Target matching the requested Mode's
	// natural target kind (lib/bin for build, test for test mode, etc).
	TargetFilter func(pkgid.Target) bool
}

// Graph is the fully constructed, topologically sorted unit graph.
type Graph struct {
	Roots []*Unit
	Deps  map[*Unit][]UnitDep
	Order []*Unit
}

type builder struct {
	req      Request
	provider PackageProvider
	interner *Interner
	deps     map[*Unit][]UnitDep
	visiting map[*Unit]bool // cycle guard; a well-formed Resolve should never hit this
}

// Build constructs the unit graph for req using provider to look up
// each resolved package's materialized Target list and build-script
// presence, per §4.3's rules for host/target lifting, dev-dependency
// inclusion, feature subsetting, and build-script units.
func Build(req Request, provider PackageProvider) (*Graph, error) {
	b := &builder{
		req:      req,
		provider: provider,
		interner: NewInterner(),
		deps:     make(map[*Unit][]UnitDep),
		visiting: make(map[*Unit]bool),
	}

	roots := req.RootPackages
	if roots == nil {
		roots = req.Resolve.Roots
	}

	var rootUnits []*Unit
	for _, id := range roots {
		pkg, err := provider.Package(id)
		if err != nil {
			return nil, err
		}
		resolved, ok := req.Resolve.Packages[id]
		if !ok {
			return nil, fmt.Errorf("unitgraph: resolve has no entry for root %s", id)
		}

		for _, target := range pkg.Targets {
			if !rootTargetMatches(req, target) {
				continue
			}
			if err := validateProcMacroLTO(target, req.Profile); err != nil {
				return nil, err
			}
			u := b.interner.Intern(Unit{
				Package:  id,
				Target:   target,
				Profile:  req.Profile,
				Kind:     rootKind(req, target),
				Mode:     req.Mode,
				Features: resolved.Features,
			})
			if err := b.expand(u, pkg, resolved); err != nil {
				return nil, err
			}
			rootUnits = append(rootUnits, u)
		}
	}

	order := topoSort(rootUnits, b.deps)
	return &Graph{Roots: rootUnits, Deps: b.deps, Order: order}, nil
}

func rootTargetMatches(req Request, t pkgid.Target) bool {
	if req.TargetFilter != nil {
		return req.TargetFilter(t)
	}
	switch req.Mode {
	case pkgid.ModeTest, pkgid.ModeCheckTest:
		return t.Kind == pkgid.TargetLib || t.Kind == pkgid.TargetTest
	case pkgid.ModeBench:
		return t.Kind == pkgid.TargetLib || t.Kind == pkgid.TargetBench
	case pkgid.ModeDoc, pkgid.ModeDocDeps:
		return t.Kind == pkgid.TargetLib || t.Kind == pkgid.TargetBin
	default:
		return t.Kind == pkgid.TargetLib || t.Kind == pkgid.TargetBin
	}
}

func rootKind(req Request, t pkgid.Target) pkgid.CompileKind {
	if t.ForHost || t.IsProcMacro() {
		return req.HostKind
	}
	return req.TargetKind
}

// expand populates b.deps[u] with one UnitDep per dependency edge
// implied by pkg/resolved, recursing into each child unit exactly
// once (interning collapses repeats to the same pointer, so recursion
// naturally terminates on a well-formed, acyclic Resolve).
func (b *builder) expand(u *Unit, pkg pkgid.Package, resolved *resolver.ResolvedPackage) error {
	if _, done := b.deps[u]; done {
		return nil
	}
	if b.visiting[u] {
		return fmt.Errorf("unitgraph: cycle detected building unit for %s/%s", u.Package, u.Target.Name)
	}
	b.visiting[u] = true
	defer delete(b.visiting, u)

	b.deps[u] = nil // mark visited even if it ends up with zero deps

	if pkg.HasBuildScript {
		runBuild, err := b.expandBuildScript(u, pkg)
		if err != nil {
			return err
		}
		b.deps[u] = append(b.deps[u], UnitDep{Unit: runBuild, ExternName: "build-script-run"})
	}

	for _, depID := range resolved.Dependencies {
		depResolved, ok := b.req.Resolve.Packages[depID]
		if !ok {
			return fmt.Errorf("unitgraph: resolve has no entry for dependency %s of %s", depID, u.Package)
		}
		decl, ok := findDeclaration(pkg, depID)
		if !ok {
			// Dependency present in the resolve graph but not declared
			// by name on this package (can't happen for a consistent
			// Resolve); skip rather than fail the whole build.
			continue
		}
		if decl.Kind == pkgid.KindDev && !u.Mode.IsAnyTest() {
			continue
		}

		depPkg, err := b.provider.Package(depID)
		if err != nil {
			return err
		}
		libTarget, ok := depPkg.Target(pkgid.TargetLib, depPkg.Summary.PackageId.Name)
		if !ok {
			for _, t := range depPkg.Targets {
				if t.Kind == pkgid.TargetLib {
					libTarget = t
					ok = true
					break
				}
			}
		}
		if !ok {
			continue // a dependency with no lib target contributes no compile unit
		}

		childKind := u.Kind
		if decl.Kind == pkgid.KindBuild || libTarget.IsProcMacro() {
			childKind = b.req.HostKind
		}

		if err := validateProcMacroLTO(libTarget, u.Profile); err != nil {
			return err
		}

		childFeatures := featureSubset(decl)

		childUnit := b.interner.Intern(Unit{
			Package:  depID,
			Target:   libTarget,
			Profile:  u.Profile,
			Kind:     childKind,
			Mode:     childBuildMode(u.Mode),
			Features: childFeatures,
		})

		if err := b.expand(childUnit, depPkg, depResolved); err != nil {
			return err
		}

		b.deps[u] = append(b.deps[u], UnitDep{
			Unit:       childUnit,
			ExternName: decl.ExternName(),
			Public:     decl.Public,
		})
	}

	return nil
}

// childBuildMode reports the mode a dependency unit is built under
// given its dependent's mode: test/bench/doc intents still compile
// their dependencies in plain ModeBuild, never re-running the
// dependency's own tests.
func childBuildMode(parent pkgid.CompileMode) pkgid.CompileMode {
	switch parent {
	case pkgid.ModeDoc, pkgid.ModeDocDeps:
		return pkgid.ModeDocDeps
	default:
		return pkgid.ModeBuild
	}
}

func (b *builder) expandBuildScript(u *Unit, pkg pkgid.Package) (*Unit, error) {
	buildTarget, ok := pkg.Target(pkgid.TargetBuildScript, "build-script-build")
	if !ok {
		return nil, fmt.Errorf("unitgraph: package %s has HasBuildScript but no build-script target", u.Package)
	}
	customBuild := b.interner.Intern(Unit{
		Package:  u.Package,
		Target:   buildTarget,
		Profile:  u.Profile,
		Kind:     b.req.HostKind,
		Mode:     pkgid.ModeBuild,
		Features: u.Features,
	})
	b.deps[customBuild] = nil

	runTarget := buildTarget
	runTarget.Kind = pkgid.TargetCustomBuild
	runBuild := b.interner.Intern(Unit{
		Package:  u.Package,
		Target:   runTarget,
		Profile:  u.Profile,
		Kind:     b.req.HostKind,
		Mode:     pkgid.ModeRunCustomBuild,
		Features: u.Features,
	})
	b.deps[runBuild] = []UnitDep{{Unit: customBuild, ExternName: "build-script-build"}}

	return runBuild, nil
}

// validateProcMacroLTO rejects a proc-macro target built under a
// profile with LTO enabled: proc-macros run in the host compiler
// process rather than being linked into the final artifact, so LTO
// over them is meaningless and rustc refuses it.
func validateProcMacroLTO(t pkgid.Target, profile pkgid.Profile) error {
	if t.IsProcMacro() && profile.LTO != pkgid.LTOOff {
		return errors.NewConfigError(
			fmt.Sprintf("proc-macro target %q cannot be built with LTO enabled", t.Name),
			fmt.Sprintf("profile %q sets lto=%s", profile.Name, profile.LTO),
			"disable LTO for this profile or split the proc-macro into its own crate with its own profile",
			nil,
		)
	}
	return nil
}

func findDeclaration(pkg pkgid.Package, depID pkgid.PackageId) (pkgid.Dependency, bool) {
	for _, d := range pkg.Summary.Dependencies {
		if d.Name == depID.Name {
			return d, true
		}
	}
	return pkgid.Dependency{}, false
}

// featureSubset computes the feature set passed to a dependency unit:
// the features its declaration names explicitly, plus its own default
// feature set unless the declaration opted out of it.
func featureSubset(decl pkgid.Dependency) map[string]bool {
	activated := make(map[string]bool, len(decl.Features)+1)
	if decl.DefaultFeatures {
		activated["default"] = true
	}
	for _, f := range decl.Features {
		activated[f] = true
	}
	return activated
}

// sortedFeatureNames is a small helper kept for debug-dump stability;
// see dump.go.
func sortedFeatureNames(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for name, on := range m {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
