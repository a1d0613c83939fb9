// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package source

import "github.com/kraklabs/cargo-core/pkg/pkgid"

// OverlaySource composes two sources and reports results from the
// first; a Summary from the second source whose PackageId equals one
// already reported by the first is silently dropped, whatever its
// Checksum.
type OverlaySource struct {
	first, second Source
}

// NewOverlaySource composes first over second.
func NewOverlaySource(first, second Source) *OverlaySource {
	return &OverlaySource{first: first, second: second}
}

func (s *OverlaySource) SourceID() pkgid.SourceId { return s.first.SourceID() }

func (s *OverlaySource) Update() error {
	if err := s.first.Update(); err != nil {
		return err
	}
	return s.second.Update()
}

func (s *OverlaySource) Query(dep pkgid.Dependency) ([]pkgid.Summary, error) {
	firstResults, err := s.first.Query(dep)
	if err != nil {
		return nil, err
	}
	secondResults, err := s.second.Query(dep)
	if err != nil {
		return nil, err
	}

	seen := make(map[pkgid.PackageId]bool, len(firstResults))
	out := make([]pkgid.Summary, 0, len(firstResults)+len(secondResults))
	for _, sum := range firstResults {
		seen[sum.PackageId] = true
		out = append(out, sum)
	}
	for _, sum := range secondResults {
		if seen[sum.PackageId] {
			continue
		}
		out = append(out, sum)
	}
	return out, nil
}

// Download tries first, falling back to second when first does not
// carry id.
func (s *OverlaySource) Download(id pkgid.PackageId) (MaybePackage, error) {
	if mp, err := s.first.Download(id); err == nil {
		return mp, nil
	}
	return s.second.Download(id)
}

func (s *OverlaySource) FinishDownload(id pkgid.PackageId, descriptor string, data []byte) (pkgid.Package, error) {
	if pkg, err := s.first.FinishDownload(id, descriptor, data); err == nil {
		return pkg, nil
	}
	return s.second.FinishDownload(id, descriptor, data)
}

func (s *OverlaySource) Fingerprint(pkg pkgid.Package) (string, error) {
	return s.first.Fingerprint(pkg)
}

func (s *OverlaySource) Verify(id pkgid.PackageId) error {
	if err := s.first.Verify(id); err == nil {
		return nil
	}
	return s.second.Verify(id)
}
