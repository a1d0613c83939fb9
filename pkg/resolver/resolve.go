// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package resolver implements the backtracking dependency resolver:
// given a set of root package summaries and a Registry to query
// candidate versions from, it produces a Resolve — one chosen
// PackageId and activated feature set per reachable package — or a
// ResolveError describing why no assignment satisfies every
// requirement.
//
// The search strategy (failure-first dependency selection, a
// ConflictCache pruning previously-failed activation sets, newest-
// version-first candidate order, locked-version preference) is
// grounded on the index-then-resolve shape of this codebase's existing
// call-graph resolver, generalized from "resolve a function call to a
// definition" to "resolve a dependency requirement to a package
// version".
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/blang/semver/v4"

	"github.com/kraklabs/cargo-core/internal/errors"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// ResolvedPackage is one entry of a Resolve: the chosen package plus
// its activated features and the direct dependency edges chosen for
// it.
type ResolvedPackage struct {
	Id           pkgid.PackageId
	Dependencies []pkgid.PackageId
	Features     map[string]bool
	Checksum     string
	Public       map[string]bool // subset of Dependencies' names marked as public, for visibility annotation only
}

// Resolve is the resolver's output: a concrete assignment of one
// version and feature set to every package reachable from Roots.
type Resolve struct {
	Roots    []pkgid.PackageId
	Packages map[pkgid.PackageId]*ResolvedPackage
}

// Options tunes the resolve beyond what the root summaries alone
// determine.
type Options struct {
	// Locked prefers these exact PackageIds when they are valid
	// candidates, mirroring a previous lockfile's choices.
	Locked map[string]pkgid.PackageId
	// IncludeDev includes dev-dependencies of root packages (never of
	// transitive non-root packages, per invariant).
	IncludeDev bool
	// AllowPrerelease allows pre-release candidates to be selected even
	// when not explicitly requested by a requirement string containing
	// a pre-release component.
	AllowPrerelease bool
}

type task struct {
	dep        pkgid.Dependency
	fromPkg    string // name of the package that declared this dependency; "" for roots
	fromIsRoot bool
}

type solverState struct {
	reg           Registry
	opts          Options
	conflicts     *ConflictCache
	activated     activationSet               // name -> chosen version
	chosen        map[string]pkgid.PackageId  // name -> full chosen id
	deps          map[string][]pkgid.PackageId // name -> direct dependency ids chosen for it
	features      map[string]map[string]bool
	public        map[string]map[string]bool
	visitedDevOf  map[string]bool // root package names whose dev-deps have already been queued
}

// Solve runs the backtracking search over roots using reg as the
// candidate source. It returns a populated Resolve on success or a
// *errors.UserError (Kind: resolve) with a fixed message when no
// assignment exists; that error names neither the unsatisfiable
// dependency nor the conflicting activation set.
func Solve(roots []pkgid.Summary, reg Registry, opts Options) (*Resolve, error) {
	st := &solverState{
		reg:          reg,
		opts:         opts,
		conflicts:    NewConflictCache(),
		activated:    make(activationSet),
		chosen:       make(map[string]pkgid.PackageId),
		deps:         make(map[string][]pkgid.PackageId),
		features:     make(map[string]map[string]bool),
		public:       make(map[string]map[string]bool),
		visitedDevOf: make(map[string]bool),
	}

	var queue []task
	var rootIds []pkgid.PackageId
	for _, root := range roots {
		rootIds = append(rootIds, root.PackageId)
		st.activated[root.PackageId.Name] = root.PackageId.Version
		st.chosen[root.PackageId.Name] = root.PackageId
		st.features[root.PackageId.Name] = root.FeatureClosure(nil, true)

		for _, dep := range root.Dependencies {
			if dep.Kind == pkgid.KindDev && !opts.IncludeDev {
				continue
			}
			queue = append(queue, task{dep: dep, fromPkg: root.PackageId.Name, fromIsRoot: true})
		}
	}

	ok, err := st.solve(queue)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewResolveError(
			"dependency resolution failed",
			"the search space was exhausted without finding a satisfying assignment",
			"relax a version requirement or check for a genuine version conflict between dependencies",
			nil,
		)
	}

	resolved := &Resolve{Roots: rootIds, Packages: make(map[pkgid.PackageId]*ResolvedPackage)}
	for name, id := range st.chosen {
		resolved.Packages[id] = &ResolvedPackage{
			Id:           id,
			Dependencies: st.deps[name],
			Features:     st.features[name],
			Public:       st.public[name],
		}
	}
	return resolved, nil
}

// solve resolves every task in queue, recursively appending the
// dependencies of whichever candidate it picks. It implements the
// failure-first heuristic by choosing, among the queue, the task with
// the fewest viable remaining candidates before trying any of them.
func (st *solverState) solve(queue []task) (bool, error) {
	if len(queue) == 0 {
		return true, nil
	}

	idx, candidates, err := st.pickMostConstrained(queue)
	if err != nil {
		return false, err
	}
	t := queue[idx]
	rest := make([]task, 0, len(queue)-1)
	rest = append(rest, queue[:idx]...)
	rest = append(rest, queue[idx+1:]...)

	if len(candidates) == 0 {
		st.conflicts.Record(t.dep.Name, st.activated)
		return false, nil
	}

	candidates = orderCandidates(candidates, st.opts.Locked[t.dep.Name])

	for _, cand := range candidates {
		trial := make(activationSet, len(st.activated)+1)
		for k, v := range st.activated {
			trial[k] = v
		}
		trial[cand.PackageId.Name] = cand.PackageId.Version

		if existing, ok := st.chosen[cand.PackageId.Name]; ok {
			if !existing.Version.EQ(cand.PackageId.Version) {
				// Two requirements disagree on the version of an
				// already-activated package: this candidate cannot be
				// taken in this branch.
				continue
			}
		}

		if st.conflicts.IsKnownConflict(t.dep.Name, trial) {
			continue
		}

		restoreChosen, hadChosen := st.chosen[cand.PackageId.Name]
		restoreFeatures, hadFeatures := st.features[cand.PackageId.Name]
		st.activated = trial
		st.chosen[cand.PackageId.Name] = cand.PackageId

		closure := cand.FeatureClosure(t.dep.Features, t.dep.DefaultFeatures)
		if existing := st.features[cand.PackageId.Name]; existing != nil {
			for f := range existing {
				closure[f] = true
			}
		}
		st.features[cand.PackageId.Name] = closure

		st.deps[t.fromPkg] = append(st.deps[t.fromPkg], cand.PackageId)
		if t.dep.Public {
			if st.public[t.fromPkg] == nil {
				st.public[t.fromPkg] = make(map[string]bool)
			}
			st.public[t.fromPkg][cand.PackageId.Name] = true
		}

		var next []task
		for _, d := range cand.Dependencies {
			if d.Kind == pkgid.KindDev {
				// Dev-dependencies never propagate past the package
				// that declares them.
				continue
			}
			next = append(next, task{dep: d, fromPkg: cand.PackageId.Name})
		}

		ok, err := st.solve(append(append([]task(nil), rest...), next...))
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		// Backtrack: undo this candidate's tentative state.
		st.activated = subtractActivation(trial, cand.PackageId.Name, st.activated)
		if hadChosen {
			st.chosen[cand.PackageId.Name] = restoreChosen
		} else {
			delete(st.chosen, cand.PackageId.Name)
		}
		if hadFeatures {
			st.features[cand.PackageId.Name] = restoreFeatures
		} else {
			delete(st.features, cand.PackageId.Name)
		}
		st.deps[t.fromPkg] = st.deps[t.fromPkg][:len(st.deps[t.fromPkg])-1]
	}

	st.conflicts.Record(t.dep.Name, st.activated)
	return false, nil
}

// subtractActivation restores the activation map to what it was
// before name was added, without disturbing entries that were already
// present for unrelated packages.
func subtractActivation(trial activationSet, name string, previous activationSet) activationSet {
	restored := make(activationSet, len(trial))
	for k, v := range trial {
		if k == name {
			continue
		}
		restored[k] = v
	}
	if v, ok := previous[name]; ok {
		restored[name] = v
	}
	return restored
}

// pickMostConstrained returns the index within queue of the task with
// the fewest viable candidates (the failure-first heuristic), along
// with that task's candidate list.
func (st *solverState) pickMostConstrained(queue []task) (int, []pkgid.Summary, error) {
	best := -1
	var bestCandidates []pkgid.Summary
	for i, t := range queue {
		candidates, err := st.reg.Query(t.dep)
		if err != nil {
			return 0, nil, fmt.Errorf("querying registry for %q: %w", t.dep.Name, err)
		}
		filtered := filterViable(candidates, t.dep, st)
		if best == -1 || len(filtered) < len(bestCandidates) {
			best = i
			bestCandidates = filtered
		}
		if len(filtered) == 0 {
			// An unsatisfiable dependency is maximally constraining;
			// report it immediately rather than scanning the rest of
			// the queue.
			return i, filtered, nil
		}
	}
	return best, bestCandidates, nil
}

// filterViable drops candidates that are already excluded by a
// same-name activation at a different version chosen earlier in this
// branch, and drops pre-release candidates unless the dependency
// explicitly opted into them.
func filterViable(candidates []pkgid.Summary, dep pkgid.Dependency, st *solverState) []pkgid.Summary {
	out := make([]pkgid.Summary, 0, len(candidates))
	for _, c := range candidates {
		if existing, ok := st.chosen[c.PackageId.Name]; ok && !existing.Version.EQ(c.PackageId.Version) {
			continue
		}
		if isPrerelease(c.PackageId.Version) && !st.opts.AllowPrerelease && !pinsExactPrerelease(dep, c.PackageId.Version) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// isPrerelease reports whether v carries a pre-release component
// ("1.0.0-beta.1" as opposed to "1.0.0").
func isPrerelease(v semver.Version) bool {
	return len(v.Pre) > 0
}

// pinsExactPrerelease reports whether dep's requirement text names v
// exactly, the way "=1.0.0-beta.1" opts a single dependency edge into
// a pre-release its requirement spells out by hand.
func pinsExactPrerelease(dep pkgid.Dependency, v semver.Version) bool {
	text := strings.TrimPrefix(strings.TrimSpace(dep.RequirementText), "=")
	return text == v.String()
}

// orderCandidates places a locked version first if present among the
// candidates, otherwise leaves the registry's newest-first ordering
// intact.
func orderCandidates(candidates []pkgid.Summary, locked pkgid.PackageId) []pkgid.Summary {
	if locked.Name == "" {
		return candidates
	}
	ordered := make([]pkgid.Summary, 0, len(candidates))
	var rest []pkgid.Summary
	for _, c := range candidates {
		if c.PackageId == locked {
			ordered = append(ordered, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(ordered, rest...)
}

// ConflictTrace renders a human-readable summary of the largest
// recorded conflict set for depName. Solve does not call it, so its
// output does not appear in the error Solve returns.
func (st *solverState) ConflictTrace(depName string) string {
	sets := st.conflicts.byDependency[depName]
	if len(sets) == 0 {
		return ""
	}
	biggest := sets[0]
	for _, s := range sets[1:] {
		if len(s) > len(biggest) {
			biggest = s
		}
	}
	parts := make([]string, 0, len(biggest))
	for name, ver := range biggest {
		parts = append(parts, fmt.Sprintf("%s@%s", name, ver.String()))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
