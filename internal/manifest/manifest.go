// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package manifest reads a project's Cargo.toml into the pkgid types
// the rest of the module operates on. pkg/source deliberately refuses
// to parse manifests itself ("it does not implement TOML parsing; it
// consumes their results") so this package supplies the
// source.Loader cmd/cargo-core hands to source.NewPathSource, the way
// the teacher's project.yaml loader sits above storage.Backend rather
// than inside it.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/blang/semver/v4"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// File is the on-disk shape of a Cargo.toml this module understands:
// a single package table, its profile overrides, and a normal/dev/build
// dependency table each keyed by dependency name.
type File struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
		Edition string `toml:"edition"`
	} `toml:"package"`
	Dependencies    map[string]DependencySpec `toml:"dependencies"`
	DevDependencies map[string]DependencySpec `toml:"dev-dependencies"`
	BuildDependencies map[string]DependencySpec `toml:"build-dependencies"`
	Features map[string][]string `toml:"features"`
	Profile  map[string]ProfileSpec `toml:"profile"`
}

// DependencySpec is either a bare version requirement string
// ("serde = \"1.0\"") or a table form; toml.Decode populates Version
// for the bare string case via UnmarshalText-style handling below.
type DependencySpec struct {
	Version         string   `toml:"version"`
	Path            string   `toml:"path"`
	Git             string   `toml:"git"`
	Rev             string   `toml:"rev"`
	Package         string   `toml:"package"`
	Optional        bool     `toml:"optional"`
	DefaultFeatures *bool    `toml:"default-features"`
	Features        []string `toml:"features"`
}

// UnmarshalTOML implements toml.Unmarshaler so `dep = "1.0"` and
// `dep = { version = "1.0", optional = true }` both decode into the
// same DependencySpec, matching Cargo's own shorthand.
func (d *DependencySpec) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		d.Version = v
		return nil
	case map[string]any:
		if s, ok := v["version"].(string); ok {
			d.Version = s
		}
		if s, ok := v["path"].(string); ok {
			d.Path = s
		}
		if s, ok := v["git"].(string); ok {
			d.Git = s
		}
		if s, ok := v["rev"].(string); ok {
			d.Rev = s
		}
		if s, ok := v["package"].(string); ok {
			d.Package = s
		}
		if b, ok := v["optional"].(bool); ok {
			d.Optional = b
		}
		if b, ok := v["default-features"].(bool); ok {
			d.DefaultFeatures = &b
		}
		if list, ok := v["features"].([]any); ok {
			for _, f := range list {
				if s, ok := f.(string); ok {
					d.Features = append(d.Features, s)
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("manifest: unsupported dependency value %T", data)
	}
}

// ProfileSpec is the subset of [profile.*] this module recognizes.
type ProfileSpec struct {
	OptLevel       string `toml:"opt-level"`
	Debug          *bool  `toml:"debug"`
	LTO            string `toml:"lto"`
	CodegenUnits   int    `toml:"codegen-units"`
	Incremental    *bool  `toml:"incremental"`
	Panic          string `toml:"panic"`
	OverflowChecks *bool  `toml:"overflow-checks"`
}

// Load parses the Cargo.toml at manifestPath.
func Load(manifestPath string) (File, error) {
	var f File
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return f, fmt.Errorf("read %s: %w", manifestPath, err)
	}
	if _, err := toml.Decode(string(data), &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", manifestPath, err)
	}
	return f, nil
}

// LoadPackage loads the manifest at dir/Cargo.toml and discovers its
// targets by walking the conventional src/ layout (lib.rs, main.rs,
// src/bin/*.rs), returning a fully materialized pkgid.Package suitable
// for source.Loader.
func LoadPackage(dir string) (pkgid.Package, error) {
	f, err := Load(filepath.Join(dir, "Cargo.toml"))
	if err != nil {
		return pkgid.Package{}, err
	}

	version, err := semver.Parse(f.Package.Version)
	if err != nil {
		return pkgid.Package{}, fmt.Errorf("manifest %s: invalid version %q: %w", dir, f.Package.Version, err)
	}

	srcID := pkgid.SourceId{Kind: pkgid.SourceKindPath, URL: dir}
	id := pkgid.PackageId{Name: f.Package.Name, Version: version, Source: srcID}

	deps, err := buildDependencies(f, srcID)
	if err != nil {
		return pkgid.Package{}, err
	}

	summary := pkgid.Summary{
		PackageId:    id,
		Dependencies: deps,
		Features:     f.Features,
	}

	targets, hasBuildScript := discoverTargets(dir, f.Package.Name, f.Package.Edition)

	return pkgid.Package{
		Summary:        summary,
		Targets:        targets,
		RootDir:        dir,
		HasBuildScript: hasBuildScript,
	}, nil
}

func buildDependencies(f File, srcID pkgid.SourceId) ([]pkgid.Dependency, error) {
	var deps []pkgid.Dependency
	add := func(name string, spec DependencySpec, kind pkgid.DependencyKind) error {
		req, err := parseRequirement(spec.Version)
		if err != nil {
			return fmt.Errorf("dependency %q: %w", name, err)
		}
		source := srcID
		if spec.Path != "" {
			source = pkgid.SourceId{Kind: pkgid.SourceKindPath, URL: resolveRelative(srcID.URL, spec.Path)}
		} else if spec.Git != "" {
			source = pkgid.SourceId{Kind: pkgid.SourceKindGit, URL: spec.Git, GitRef: spec.Rev}
		}
		defaultFeatures := true
		if spec.DefaultFeatures != nil {
			defaultFeatures = *spec.DefaultFeatures
		}
		rename := ""
		if spec.Package != "" && spec.Package != name {
			rename = name
		}
		depName := name
		if spec.Package != "" {
			depName = spec.Package
		}
		deps = append(deps, pkgid.Dependency{
			Name:            depName,
			Requirement:     req,
			RequirementText: spec.Version,
			Source:          source,
			Kind:            kind,
			Features:        spec.Features,
			Optional:        spec.Optional,
			DefaultFeatures: defaultFeatures,
			ExplicitRename:  rename,
		})
		return nil
	}

	names := sortedKeys(f.Dependencies)
	for _, name := range names {
		if err := add(name, f.Dependencies[name], pkgid.KindNormal); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(f.DevDependencies) {
		if err := add(name, f.DevDependencies[name], pkgid.KindDev); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(f.BuildDependencies) {
		if err := add(name, f.BuildDependencies[name], pkgid.KindBuild); err != nil {
			return nil, err
		}
	}
	return deps, nil
}

func sortedKeys(m map[string]DependencySpec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseRequirement(text string) (semver.Range, error) {
	if text == "" {
		return func(semver.Version) bool { return true }, nil
	}
	return semver.ParseRange(text)
}

func resolveRelative(base, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Clean(filepath.Join(base, rel))
}

// discoverTargets walks the conventional layout: src/lib.rs becomes a
// TargetLib, src/main.rs becomes a TargetBin named after the package,
// each src/bin/*.rs becomes its own TargetBin, and a build.rs at the
// package root becomes a TargetBuildScript.
func discoverTargets(dir, pkgName, edition string) (targets []pkgid.Target, hasBuildScript bool) {
	if edition == "" {
		edition = "2021"
	}
	if fileExists(filepath.Join(dir, "src", "lib.rs")) {
		targets = append(targets, pkgid.Target{
			Kind:       pkgid.TargetLib,
			Name:       pkgName,
			SrcPath:    filepath.Join(dir, "src", "lib.rs"),
			CrateTypes: []pkgid.CrateType{pkgid.CrateTypeRlib},
			Edition:    edition,
		})
	}
	if fileExists(filepath.Join(dir, "src", "main.rs")) {
		targets = append(targets, pkgid.Target{
			Kind:       pkgid.TargetBin,
			Name:       pkgName,
			SrcPath:    filepath.Join(dir, "src", "main.rs"),
			CrateTypes: []pkgid.CrateType{pkgid.CrateTypeBin},
			Edition:    edition,
		})
	}
	binDir := filepath.Join(dir, "src", "bin")
	if entries, err := os.ReadDir(binDir); err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".rs") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			binName := strings.TrimSuffix(name, ".rs")
			targets = append(targets, pkgid.Target{
				Kind:       pkgid.TargetBin,
				Name:       binName,
				SrcPath:    filepath.Join(binDir, name),
				CrateTypes: []pkgid.CrateType{pkgid.CrateTypeBin},
				Edition:    edition,
			})
		}
	}
	if fileExists(filepath.Join(dir, "build.rs")) {
		hasBuildScript = true
		targets = append(targets, pkgid.Target{
			Kind:    pkgid.TargetBuildScript,
			Name:    "build-script-build",
			SrcPath: filepath.Join(dir, "build.rs"),
			ForHost: true,
			Edition: edition,
		})
	}
	return targets, hasBuildScript
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
