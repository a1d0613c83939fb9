// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package resolver

import (
	"sort"

	"github.com/blang/semver/v4"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// Registry answers "which summaries could satisfy this dependency" for
// the resolver. A Source (pkg/source) is adapted into a Registry by the
// caller; the resolver itself never talks to a Source directly.
type Registry interface {
	// Query returns every candidate Summary whose name matches dep.Name
	// and whose version satisfies dep.Requirement, ordered
	// highest-version-first. The resolver relies on this ordering for
	// its default "prefer newest" tie-break.
	Query(dep pkgid.Dependency) ([]pkgid.Summary, error)
}

// IndexRegistry is an in-memory Registry built once from a flat list of
// summaries and then queried by name. This mirrors the teacher's
// CallResolver pattern of building a name-keyed index once up front
// and then resolving repeated lookups against it, rather than
// rescanning the candidate list on every query.
type IndexRegistry struct {
	byName map[string][]pkgid.Summary
}

// NewIndexRegistry builds the name index from summaries. Candidates
// for each name are pre-sorted newest-first so Query never needs to
// re-sort.
func NewIndexRegistry(summaries []pkgid.Summary) *IndexRegistry {
	idx := &IndexRegistry{byName: make(map[string][]pkgid.Summary)}
	for _, s := range summaries {
		idx.byName[s.PackageId.Name] = append(idx.byName[s.PackageId.Name], s)
	}
	for name, list := range idx.byName {
		sorted := append([]pkgid.Summary(nil), list...)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].PackageId.Version.GT(sorted[j].PackageId.Version)
		})
		idx.byName[name] = sorted
	}
	return idx
}

// Query implements Registry.
func (r *IndexRegistry) Query(dep pkgid.Dependency) ([]pkgid.Summary, error) {
	candidates := r.byName[dep.Name]
	if len(candidates) == 0 {
		return nil, nil
	}
	out := make([]pkgid.Summary, 0, len(candidates))
	for _, c := range candidates {
		if dep.Requirement == nil || matches(dep.Requirement, c.PackageId.Version) {
			out = append(out, c)
		}
	}
	return out, nil
}

func matches(r semver.Range, v semver.Version) bool {
	return r(v)
}
