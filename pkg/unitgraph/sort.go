// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package unitgraph

import "sort"

// topoSort produces a stable topological order over every unit
// reachable from roots: dependencies before dependents, and equal-
// priority nodes ordered by (package name, target name, mode) per
// §4.3's stability rule.
func topoSort(roots []*Unit, deps map[*Unit][]UnitDep) []*Unit {
	var all []*Unit
	seen := make(map[*Unit]bool)
	var collect func(u *Unit)
	collect = func(u *Unit) {
		if seen[u] {
			return
		}
		seen[u] = true
		all = append(all, u)
		for _, d := range deps[u] {
			collect(d.Unit)
		}
	}
	for _, r := range roots {
		collect(r)
	}

	sort.Slice(all, func(i, j int) bool { return less(all[i], all[j]) })

	indegree := make(map[*Unit]int, len(all))
	for _, u := range all {
		indegree[u] = 0
	}
	for _, u := range all {
		for _, d := range deps[u] {
			indegree[d.Unit]++
		}
	}

	var order []*Unit
	done := make(map[*Unit]bool, len(all))
	for len(order) < len(all) {
		progressed := false
		for _, u := range all {
			if done[u] {
				continue
			}
			ready := true
			for _, d := range deps[u] {
				if !done[d.Unit] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			order = append(order, u)
			done[u] = true
			progressed = true
		}
		if !progressed {
			// A well-formed Resolve never reaches this; fall back to
			// the stable pre-sort rather than looping forever.
			for _, u := range all {
				if !done[u] {
					order = append(order, u)
					done[u] = true
				}
			}
			break
		}
	}
	return order
}

func less(a, b *Unit) bool {
	if a.Package.Name != b.Package.Name {
		return a.Package.Name < b.Package.Name
	}
	if a.Target.Name != b.Target.Name {
		return a.Target.Name < b.Target.Name
	}
	return a.Mode < b.Mode
}
