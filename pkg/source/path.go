// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package source

import (
	"fmt"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// PathSource wraps a single package materialized at a fixed local
// directory: a workspace member or a `path = "..."` dependency.
// Update is a no-op (there is no remote state); Download is always
// immediately Ready since the bytes are already on disk.
type PathSource struct {
	root string
	pkg  pkgid.Package
}

// NewPathSource loads the package at root using load.
func NewPathSource(root string, load Loader) (*PathSource, error) {
	pkg, err := load(root)
	if err != nil {
		return nil, fmt.Errorf("path source %s: %w", root, err)
	}
	return &PathSource{root: root, pkg: pkg}, nil
}

func (s *PathSource) SourceID() pkgid.SourceId {
	return pkgid.SourceId{Kind: pkgid.SourceKindPath, URL: s.root}
}

func (s *PathSource) Update() error { return nil }

func (s *PathSource) Query(dep pkgid.Dependency) ([]pkgid.Summary, error) {
	if dep.Name != s.pkg.Summary.PackageId.Name {
		return nil, nil
	}
	if !dep.Requirement(s.pkg.Summary.PackageId.Version) {
		return nil, nil
	}
	return []pkgid.Summary{s.pkg.Summary}, nil
}

func (s *PathSource) Download(id pkgid.PackageId) (MaybePackage, error) {
	if id != s.pkg.Summary.PackageId {
		return MaybePackage{}, fmt.Errorf("path source %s: no package %s", s.root, id)
	}
	pkg := s.pkg
	return MaybePackage{Ready: &pkg}, nil
}

func (s *PathSource) FinishDownload(id pkgid.PackageId, descriptor string, data []byte) (pkgid.Package, error) {
	return pkgid.Package{}, fmt.Errorf("path source %s: FinishDownload is unreachable, Download is always Ready", s.root)
}

// Fingerprint for a path source is never stable across runs in real
// Cargo (mtimes change freely); here it always reports the empty
// string, signalling
// "always potentially dirty, let the fingerprint engine's own file
// comparison decide."
func (s *PathSource) Fingerprint(pkg pkgid.Package) (string, error) {
	return "", nil
}

func (s *PathSource) Verify(id pkgid.PackageId) error { return nil }
