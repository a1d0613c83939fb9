// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package unitgraph

import "sync"

// Interner hands out a single canonical *Unit per distinct
// (package, target, profile, kind, mode, features, is_std) tuple,
// generalizing pkg/interning's "intern if short, hash if long" string
// table to whole Unit values.
type Interner struct {
	mu    sync.Mutex
	units map[string]*Unit
}

// NewInterner creates an empty Interner.
func NewInterner() *Interner {
	return &Interner{units: make(map[string]*Unit)}
}

// Intern returns the canonical *Unit equal to u, creating and caching
// one if this is the first time this exact tuple has been seen.
func (in *Interner) Intern(u Unit) *Unit {
	key := u.key()

	in.mu.Lock()
	defer in.mu.Unlock()

	if existing, ok := in.units[key]; ok {
		return existing
	}
	stored := u
	in.units[key] = &stored
	return &stored
}

// Len reports how many distinct units have been interned so far.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.units)
}
