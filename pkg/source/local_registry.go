// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package source

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/cargo-core/pkg/cachetracker"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// LocalRegistrySource serves packages from a registry mirror that has
// already been extracted to disk (e.g. by `cargo vendor` against a
// registry, or a CI-populated offline mirror): root/<name>-<version>/
// holds the already-unpacked crate, no network or checksum
// verification is performed since the bytes never moved.
type LocalRegistrySource struct {
	root    string
	load    Loader
	tracker *cachetracker.Tracker

	pkgs map[pkgid.PackageId]pkgid.Package
}

// NewLocalRegistrySource scans root, loading every "<name>-<version>"
// subdirectory with load. tracker may be nil to skip cache bookkeeping.
func NewLocalRegistrySource(root string, load Loader, tracker *cachetracker.Tracker) (*LocalRegistrySource, error) {
	s := &LocalRegistrySource{root: root, load: load, tracker: tracker, pkgs: make(map[pkgid.PackageId]pkgid.Package)}
	if err := s.Update(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalRegistrySource) SourceID() pkgid.SourceId {
	return pkgid.SourceId{Kind: pkgid.SourceKindLocalRegistry, URL: s.root}
}

func (s *LocalRegistrySource) Update() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("local registry %s: %w", s.root, err)
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

func (s *LocalRegistrySource) Query(dep pkgid.Dependency) ([]pkgid.Summary, error) {
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

func (s *LocalRegistrySource) Download(id pkgid.PackageId) (MaybePackage, error) {
	pkg, ok := s.pkgs[id]
	if !ok {
		return MaybePackage{}, fmt.Errorf("local registry %s: no package %s", s.root, id)
	}
	if s.tracker != nil {
		s.tracker.MarkUsed(cachetracker.KindRegistrySrc, cachetracker.RegistrySrcKey(s.root, id.Name, id.Version.String()))
	}
	return MaybePackage{Ready: &pkg}, nil
}

func (s *LocalRegistrySource) FinishDownload(id pkgid.PackageId, descriptor string, data []byte) (pkgid.Package, error) {
	return pkgid.Package{}, fmt.Errorf("local registry %s: FinishDownload is unreachable, Download is always Ready", s.root)
}

func (s *LocalRegistrySource) Fingerprint(pkg pkgid.Package) (string, error) {
	return pkg.Summary.Checksum, nil
}

func (s *LocalRegistrySource) Verify(id pkgid.PackageId) error {
	if _, ok := s.pkgs[id]; !ok {
		return fmt.Errorf("local registry %s: no package %s", s.root, id)
	}
	return nil
}
