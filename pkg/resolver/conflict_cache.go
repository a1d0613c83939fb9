// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package resolver

import "github.com/blang/semver/v4"

// activationSet is a minimal snapshot of (package name -> chosen
// version) that provoked a conflict for some dependency. Keying on the
// full activation set rather than just the failing dependency name
// mirrors the upstream resolver's conflict cache: a dependency named
// "X" can fail for entirely different reasons depending on which other
// packages are active, so the cache must distinguish those cases
// instead of blacklisting the name outright.
type activationSet map[string]semver.Version

// isSupersetOf reports whether every (name, version) pair in other
// is also present (with an equal version) in s. An activation that is
// not a superset of a recorded conflict set might still succeed, since
// the offending package may no longer be active.
func (s activationSet) isSupersetOf(other activationSet) bool {
	for name, ver := range other {
		v, ok := s[name]
		if !ok || !v.EQ(ver) {
			return false
		}
	}
	return true
}

// ConflictCache records, per dependency name, every activation set
// that is known not to satisfy it. The resolver consults it before
// descending into a branch: if the current activation is a superset of
// any recorded set for the dependency being resolved, that branch is
// known to fail and is pruned without further search.
type ConflictCache struct {
	byDependency map[string][]activationSet
}

// NewConflictCache returns an empty cache.
func NewConflictCache() *ConflictCache {
	return &ConflictCache{byDependency: make(map[string][]activationSet)}
}

// Record stores that the given activation set fails to satisfy depName.
func (c *ConflictCache) Record(depName string, activated activationSet) {
	// Copy so later mutation of the caller's map does not corrupt the
	// cache entry.
	snapshot := make(activationSet, len(activated))
	for k, v := range activated {
		snapshot[k] = v
	}
	c.byDependency[depName] = append(c.byDependency[depName], snapshot)
}

// IsKnownConflict reports whether activated is already known to fail
// depName, i.e. it is a superset of some previously recorded
// conflicting activation set.
func (c *ConflictCache) IsKnownConflict(depName string, activated activationSet) bool {
	for _, recorded := range c.byDependency[depName] {
		if activated.isSupersetOf(recorded) {
			return true
		}
	}
	return false
}

// Len reports how many conflict-set entries are recorded across all
// dependency names, for diagnostics and tests.
func (c *ConflictCache) Len() int {
	n := 0
	for _, sets := range c.byDependency {
		n += len(sets)
	}
	return n
}
