// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package pkgid defines the core identity and manifest-level data types:
// PackageId, SourceId, Dependency, Summary, Target, Profile, CompileKind,
// and CompileMode. These are the value types every other package in the
// module (resolver, unitgraph, fingerprint, source) builds on.
package pkgid

import (
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
)

// SourceKind distinguishes where a package's bytes come from.
type SourceKind int

const (
	// SourceKindPath is a package rooted at a local filesystem path.
	SourceKindPath SourceKind = iota
	// SourceKindGit is a package fetched from a git repository at a ref.
	SourceKindGit
	// SourceKindRegistry is a package served by a remote or sparse
	// registry index.
	SourceKindRegistry
	// SourceKindLocalRegistry is a package served by a pre-downloaded
	// local registry directory.
	SourceKindLocalRegistry
	// SourceKindDirectory is a package served by a flat directory of
	// vendored crate trees.
	SourceKindDirectory
)

func (k SourceKind) String() string {
	switch k {
	case SourceKindPath:
		return "path"
	case SourceKindGit:
		return "git"
	case SourceKindRegistry:
		return "registry"
	case SourceKindLocalRegistry:
		return "local-registry"
	case SourceKindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// SourceId identifies where a package comes from. Two SourceIds are
// equal iff their Kind, URL, and GitRef are all equal; equality is
// structural, not pointer-based (string interning, used by PackageId
// and above, does not apply here because SourceId composes three
// fields rather than a single string).
type SourceId struct {
	Kind   SourceKind
	URL    string // registry base URL, git remote URL, or absolute path
	GitRef string // git branch/tag/rev; empty for non-git sources
}

// String renders a SourceId the way it appears in a lockfile
// dependency line ("name version source").
func (s SourceId) String() string {
	switch s.Kind {
	case SourceKindPath:
		return fmt.Sprintf("path+%s", s.URL)
	case SourceKindGit:
		if s.GitRef != "" {
			return fmt.Sprintf("git+%s?rev=%s", s.URL, s.GitRef)
		}
		return fmt.Sprintf("git+%s", s.URL)
	case SourceKindRegistry:
		return fmt.Sprintf("registry+%s", s.URL)
	case SourceKindLocalRegistry:
		return fmt.Sprintf("local-registry+%s", s.URL)
	case SourceKindDirectory:
		return fmt.Sprintf("directory+%s", s.URL)
	default:
		return s.URL
	}
}

// PackageId uniquely identifies one version of a package from one
// source. PackageId values are small and comparable; use them as map
// keys directly.
type PackageId struct {
	Name    string
	Version semver.Version
	Source  SourceId
}

// String renders "name vversion (source)".
func (id PackageId) String() string {
	return fmt.Sprintf("%s v%s (%s)", id.Name, id.Version.String(), id.Source.String())
}

// DependencyKind distinguishes a dependency's role in the build.
type DependencyKind int

const (
	// KindNormal dependencies are compiled into every build of the
	// depending package.
	KindNormal DependencyKind = iota
	// KindDev dependencies are only compiled for tests, examples, and
	// benches of the depending package and do not propagate transitively.
	KindDev
	// KindBuild dependencies are only visible to the depending
	// package's build script and are always built for the host.
	KindBuild
)

func (k DependencyKind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindDev:
		return "dev"
	case KindBuild:
		return "build"
	default:
		return "unknown"
	}
}

// Platform is a predicate over a target triple, either empty (matches
// everything) or a cfg-expression-shaped string evaluated by the
// resolver against the compilation target.
type Platform string

// Matches reports whether the platform predicate applies to triple.
// An empty predicate always matches. This is a conservative substring
// match over cfg keys (e.g. "cfg(unix)", "cfg(target_os = \"linux\")")
// sufficient for the resolver's needs; full cfg expression evaluation
// belongs to the compiler driver, not the resolver.
func (p Platform) Matches(triple string) bool {
	if p == "" {
		return true
	}
	if !strings.Contains(string(p), "cfg(") {
		return string(p) == triple
	}
	return strings.Contains(triple, extractCfgHint(string(p)))
}

func extractCfgHint(cfg string) string {
	start := strings.Index(cfg, "\"")
	if start < 0 {
		return ""
	}
	end := strings.Index(cfg[start+1:], "\"")
	if end < 0 {
		return ""
	}
	return cfg[start+1 : start+1+end]
}

// Dependency is a requirement a package's manifest places on another
// package: a name, a semver range, a source, activation rules, and a
// platform predicate.
type Dependency struct {
	Name             string
	Requirement      semver.Range
	RequirementText  string // original textual requirement, for error messages and lockfile round-trip
	Source           SourceId
	Kind             DependencyKind
	Platform         Platform
	Features         []string
	Optional         bool
	DefaultFeatures  bool
	Public           bool
	ExplicitRename   string // Cargo's "package = " rename; empty if none
}

// ExternName is the name the dependency is imported under: the rename
// if present, else Name with '-' replaced by '_'.
func (d Dependency) ExternName() string {
	if d.ExplicitRename != "" {
		return strings.ReplaceAll(d.ExplicitRename, "-", "_")
	}
	return strings.ReplaceAll(d.Name, "-", "_")
}

// Summary is a package's metadata: identity, declared dependencies, and
// feature table, without a materialized source tree. Resolvers operate
// entirely over Summaries; only the winning PackageIds are later
// downloaded into Packages.
type Summary struct {
	PackageId    PackageId
	Dependencies []Dependency
	Features     map[string][]string // feature name -> list of features/deps it enables
	Checksum     string              // empty if the source does not provide one (e.g. path sources)
}

// FeatureClosure computes the closed set of activated features given a
// set of explicitly requested features, respecting "dep:name" and
// "name/feature" syntax (weak and namespaced features) at the level
// this summary's table describes them.
func (s Summary) FeatureClosure(requested []string, defaultFeatures bool) map[string]bool {
	activated := make(map[string]bool)
	var activate func(name string)
	activate = func(name string) {
		if activated[name] {
			return
		}
		activated[name] = true
		for _, enabled := range s.Features[name] {
			if strings.HasPrefix(enabled, "dep:") {
				continue // namespaced optional-dependency activation; handled by the unit graph builder
			}
			if idx := strings.Index(enabled, "/"); idx >= 0 {
				activate(enabled[idx+1:])
				continue
			}
			activate(enabled)
		}
	}
	if defaultFeatures {
		if _, ok := s.Features["default"]; ok {
			activate("default")
		}
	}
	for _, f := range requested {
		activate(f)
	}
	return activated
}

// TargetKind distinguishes the kind of artifact a Target describes.
type TargetKind int

const (
	TargetLib TargetKind = iota
	TargetBin
	TargetExample
	TargetTest
	TargetBench
	TargetBuildScript
	TargetCustomBuild
)

func (k TargetKind) String() string {
	switch k {
	case TargetLib:
		return "lib"
	case TargetBin:
		return "bin"
	case TargetExample:
		return "example"
	case TargetTest:
		return "test"
	case TargetBench:
		return "bench"
	case TargetBuildScript:
		return "build-script"
	case TargetCustomBuild:
		return "custom-build"
	default:
		return "unknown"
	}
}

// CrateType is the kind of linkable artifact a lib target produces.
type CrateType string

const (
	CrateTypeRlib      CrateType = "rlib"
	CrateTypeDylib     CrateType = "dylib"
	CrateTypeCdylib    CrateType = "cdylib"
	CrateTypeStaticlib CrateType = "staticlib"
	CrateTypeProcMacro CrateType = "proc-macro"
	CrateTypeBin       CrateType = "bin"
)

// Target describes one compilable artifact within a package: its kind,
// source entry point, name, and the crate types it should be emitted as
// (relevant to lib targets).
type Target struct {
	Kind               TargetKind
	Name               string
	SrcPath            string
	CrateTypes         []CrateType
	RequiredFeatures   []string
	ForHost            bool // true for proc-macro libs and build scripts: always compiled for the host
	Edition            string
}

// IsProcMacro reports whether this target produces a proc-macro crate.
func (t Target) IsProcMacro() bool {
	for _, ct := range t.CrateTypes {
		if ct == CrateTypeProcMacro {
			return true
		}
	}
	return false
}

// LTOSetting is a tri-state: a profile's LTO value is off, a cheaper
// "thin" pass, or a full cross-crate "fat" pass.
type LTOSetting int

const (
	LTOOff LTOSetting = iota
	LTOThin
	LTOFat
)

func (l LTOSetting) String() string {
	switch l {
	case LTOOff:
		return "off"
	case LTOThin:
		return "thin"
	case LTOFat:
		return "fat"
	default:
		return "unknown"
	}
}

// Profile is the resolved set of codegen settings applied to a unit.
// It is produced by following a profile table's `inherits` chain
// (e.g. "release" inherits unset fields from a built-in base) down to
// a single flattened value.
type Profile struct {
	Name            string
	OptLevel        string // "0".."3", "s", "z"
	Debug           bool
	LTO             LTOSetting
	CodegenUnits    int
	Incremental     bool
	Panic           string // "unwind" or "abort"
	OverflowChecks  bool
	Rpath           bool
	SplitDebugInfo  string
	Strip           string // "none", "debuginfo", "symbols"
}

// Package is a materialized source tree plus its Summary and Target
// list. It is produced by Source.Download/FinishDownload.
type Package struct {
	Summary Summary
	Targets []Target
	RootDir string
	HasBuildScript bool
}

// Target looks up a target by kind and name; ok is false if absent.
func (p Package) Target(kind TargetKind, name string) (Target, bool) {
	for _, t := range p.Targets {
		if t.Kind == kind && t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// CompileKind distinguishes units built to run on the host (the
// machine running cargo-core) from units built for the ultimate
// compilation target (which may be the same triple as the host, or a
// different one when cross-compiling).
type CompileKind struct {
	IsHost bool
	Triple string // empty when IsHost is true and no explicit host triple override is set
}

// Host returns the host CompileKind.
func Host() CompileKind { return CompileKind{IsHost: true} }

// ForTarget returns the CompileKind for the given target triple.
func ForTarget(triple string) CompileKind { return CompileKind{IsHost: false, Triple: triple} }

func (k CompileKind) String() string {
	if k.IsHost {
		if k.Triple == "" {
			return "host"
		}
		return "host:" + k.Triple
	}
	return k.Triple
}

// CompileMode is the purpose a Unit is being built for.
type CompileMode int

const (
	ModeBuild CompileMode = iota
	ModeCheck
	ModeCheckTest // `cargo check --tests`: type-check test code without running it
	ModeTest
	ModeBench
	ModeDoc
	ModeDocDeps // building a dependency's rlib purely to satisfy `cargo doc`
	ModeDoctest
	ModeRunCustomBuild
)

func (m CompileMode) String() string {
	switch m {
	case ModeBuild:
		return "build"
	case ModeCheck:
		return "check"
	case ModeCheckTest:
		return "check-test"
	case ModeTest:
		return "test"
	case ModeBench:
		return "bench"
	case ModeDoc:
		return "doc"
	case ModeDocDeps:
		return "doc-deps"
	case ModeDoctest:
		return "doctest"
	case ModeRunCustomBuild:
		return "run-custom-build"
	default:
		return "unknown"
	}
}

// IsAnyTest reports whether the mode runs or type-checks test code.
func (m CompileMode) IsAnyTest() bool {
	return m == ModeTest || m == ModeCheckTest || m == ModeDoctest || m == ModeBench
}
