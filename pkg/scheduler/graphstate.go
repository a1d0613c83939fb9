// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scheduler

import "github.com/kraklabs/cargo-core/pkg/unitgraph"

// graphState tracks, for a single run, which units are still waiting
// on dependencies (the "ready queue" and "in-flight set" of §4.5).
// It is not safe for concurrent use; callers serialize access with
// their own mutex, matching the one place Scheduler.Run does so.
type graphState struct {
	remaining map[*unitgraph.Unit]int
	waiters   map[*unitgraph.Unit][]*unitgraph.Unit
	deps      map[*unitgraph.Unit][]unitgraph.UnitDep
}

func newGraphState(g *unitgraph.Graph) *graphState {
	s := &graphState{
		remaining: make(map[*unitgraph.Unit]int, len(g.Deps)),
		waiters:   make(map[*unitgraph.Unit][]*unitgraph.Unit, len(g.Deps)),
		deps:      g.Deps,
	}
	for u, ds := range g.Deps {
		s.remaining[u] = len(ds)
		for _, d := range ds {
			s.waiters[d.Unit] = append(s.waiters[d.Unit], u)
		}
	}
	return s
}

// initialReady returns every unit with no dependencies, the seed of
// the ready queue.
func (s *graphState) initialReady() []*unitgraph.Unit {
	var ready []*unitgraph.Unit
	for u, n := range s.remaining {
		if n == 0 {
			ready = append(ready, u)
		}
	}
	return ready
}

// depFailed reports whether any direct dependency of u is in failed.
func (s *graphState) depFailed(u *unitgraph.Unit, failed map[*unitgraph.Unit]bool) bool {
	for _, d := range s.deps[u] {
		if failed[d.Unit] {
			return true
		}
	}
	return false
}

// complete marks u finished and returns every waiter whose last
// outstanding dependency was u, i.e. units newly entering the ready
// queue.
func (s *graphState) complete(u *unitgraph.Unit) []*unitgraph.Unit {
	var ready []*unitgraph.Unit
	for _, w := range s.waiters[u] {
		s.remaining[w]--
		if s.remaining[w] == 0 {
			ready = append(ready, w)
		}
	}
	return ready
}
