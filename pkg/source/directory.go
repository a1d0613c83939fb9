// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package source

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// DirectorySource serves packages from a flat vendored directory: one
// subdirectory per package, each loaded with the caller-supplied
// Loader. Used for `cargo vendor`-style offline builds.
type DirectorySource struct {
	root string
	load Loader

	pkgs map[pkgid.PackageId]pkgid.Package
}

// NewDirectorySource scans root's immediate subdirectories, loading
// each with load. A subdirectory that load rejects is skipped with no
// error: vendored directories commonly contain non-package scratch
// dirs alongside real vendored crates.
func NewDirectorySource(root string, load Loader) (*DirectorySource, error) {
	s := &DirectorySource{root: root, load: load, pkgs: make(map[pkgid.PackageId]pkgid.Package)}
	if err := s.Update(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DirectorySource) SourceID() pkgid.SourceId {
	return pkgid.SourceId{Kind: pkgid.SourceKindDirectory, URL: s.root}
}

// Update rescans root, replacing the in-memory package set.
func (s *DirectorySource) Update() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("directory source %s: %w", s.root, err)
	}

	pkgs := make(map[pkgid.PackageId]pkgid.Package, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, entry.Name())
		pkg, err := s.load(dir)
		if err != nil {
			continue
		}
		pkgs[pkg.Summary.PackageId] = pkg
	}
	s.pkgs = pkgs
	return nil
}

func (s *DirectorySource) Query(dep pkgid.Dependency) ([]pkgid.Summary, error) {
	var out []pkgid.Summary
	for id, pkg := range s.pkgs {
		if id.Name != dep.Name {
			continue
		}
		if dep.Requirement != nil && !dep.Requirement(id.Version) {
			continue
		}
		out = append(out, pkg.Summary)
	}
	return out, nil
}

func (s *DirectorySource) Download(id pkgid.PackageId) (MaybePackage, error) {
	pkg, ok := s.pkgs[id]
	if !ok {
		return MaybePackage{}, fmt.Errorf("directory source %s: no package %s", s.root, id)
	}
	return MaybePackage{Ready: &pkg}, nil
}

func (s *DirectorySource) FinishDownload(id pkgid.PackageId, descriptor string, data []byte) (pkgid.Package, error) {
	return pkgid.Package{}, fmt.Errorf("directory source %s: FinishDownload is unreachable, Download is always Ready", s.root)
}

func (s *DirectorySource) Fingerprint(pkg pkgid.Package) (string, error) {
	return pkg.Summary.Checksum, nil
}

func (s *DirectorySource) Verify(id pkgid.PackageId) error {
	if _, ok := s.pkgs[id]; !ok {
		return fmt.Errorf("directory source %s: no package %s", s.root, id)
	}
	return nil
}
