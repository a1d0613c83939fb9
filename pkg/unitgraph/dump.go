// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package unitgraph

import "fmt"

// UnitDump is the stable, JSON-serializable rendering of one Unit,
// used by `cargo-core plan --json`. Units are identified by index into
// the dump's own Units slice rather than by pointer, so the dump is
// reproducible byte-for-byte across runs over the same Resolve.
type UnitDump struct {
	Package  string   `json:"package"`
	Target   string   `json:"target"`
	Kind     string   `json:"kind"`
	Mode     string   `json:"mode"`
	Profile  string   `json:"profile"`
	Features []string `json:"features,omitempty"`
	Deps     []int    `json:"deps,omitempty"`
}

// GraphDump is the top-level debug-dump document.
type GraphDump struct {
	Roots []int      `json:"roots"`
	Units []UnitDump `json:"units"`
}

// Dump renders g in the order decided by topoSort (package name,
// target name, mode), per the recorded Open Question decision that
// `plan --json` output must be stable across runs of the same Resolve.
func (g *Graph) Dump() GraphDump {
	index := make(map[*Unit]int, len(g.Order))
	for i, u := range g.Order {
		index[u] = i
	}

	units := make([]UnitDump, len(g.Order))
	for i, u := range g.Order {
		depIdxs := make([]int, 0, len(g.Deps[u]))
		for _, d := range g.Deps[u] {
			depIdxs = append(depIdxs, index[d.Unit])
		}
		units[i] = UnitDump{
			Package:  u.Package.String(),
			Target:   fmt.Sprintf("%s:%s", u.Target.Kind, u.Target.Name),
			Kind:     u.Kind.String(),
			Mode:     u.Mode.String(),
			Profile:  u.Profile.Name,
			Features: sortedFeatureNames(u.Features),
			Deps:     depIdxs,
		}
	}

	roots := make([]int, 0, len(g.Roots))
	for _, r := range g.Roots {
		roots = append(roots, index[r])
	}

	return GraphDump{Roots: roots, Units: units}
}
