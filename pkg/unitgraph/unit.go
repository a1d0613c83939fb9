// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package unitgraph builds the unit graph (§4.3): given a Resolve and
// a build intent, it produces the set of compilation Units and their
// dependency edges that the scheduler will execute.
//
// Units are interned the same way pkg/interning interns strings —
// identical (package, target, profile, kind, mode, features) tuples
// collapse to one *Unit, so equality reduces to pointer comparison and
// the graph does not explode when a package is reachable from many
// roots with the same configuration.
package unitgraph

import (
	"sort"
	"strings"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// Unit is one compilation the scheduler can run: one Target of one
// Package, built for one CompileKind and CompileMode, under one
// Profile, with one resolved feature set.
type Unit struct {
	Package  pkgid.PackageId
	Target   pkgid.Target
	Profile  pkgid.Profile
	Kind     pkgid.CompileKind
	Mode     pkgid.CompileMode
	Features map[string]bool
	IsStd    bool
}

// UnitDep is one edge in the unit graph: the child Unit this edge
// points to, plus how the parent unit should see it.
type UnitDep struct {
	Unit       *Unit
	ExternName string
	Public     bool
}

// key returns the canonical string identity of a unit: two Units with
// an identical key are the same Unit and must intern to the same
// pointer.
func (u Unit) key() string {
	var b strings.Builder
	b.WriteString(u.Package.String())
	b.WriteByte('\x1f')
	b.WriteString(u.Target.Kind.String())
	b.WriteByte('\x1f')
	b.WriteString(u.Target.Name)
	b.WriteByte('\x1f')
	b.WriteString(u.Profile.Name)
	b.WriteByte('\x1f')
	b.WriteString(u.Kind.String())
	b.WriteByte('\x1f')
	b.WriteString(u.Mode.String())
	b.WriteByte('\x1f')
	if u.IsStd {
		b.WriteString("std")
	}
	b.WriteByte('\x1f')

	names := make([]string, 0, len(u.Features))
	for f, on := range u.Features {
		if on {
			names = append(names, f)
		}
	}
	sort.Strings(names)
	b.WriteString(strings.Join(names, ","))
	return b.String()
}
