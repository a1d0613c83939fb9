// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package interning provides a process-wide string interner and a
// generic value interner used by the unit graph builder to give Units
// pointer-equality and stable hashing (see pkg/unitgraph). The
// normalization and hashing discipline here is grounded on the
// deterministic-id scheme used elsewhere in this codebase for content
// addressing: short keys are kept verbatim, long ones are folded to a
// fixed-width digest so map keys stay cheap to compare and hash.
package interning

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"sync"
)

// maxVerbatimKeyBytes is the longest string kept as its own interned
// key before being folded into a digest.
const maxVerbatimKeyBytes = 256

// StringInterner hands out a stable, comparable handle for each
// distinct string it sees. It is safe for concurrent use.
type StringInterner struct {
	mu      sync.Mutex
	strings []string
	ids     map[string]int
}

// NewStringInterner returns an empty interner.
func NewStringInterner() *StringInterner {
	return &StringInterner{ids: make(map[string]int)}
}

// Intern returns the stable integer handle for s, allocating a new one
// if s has not been seen before.
func (in *StringInterner) Intern(s string) int {
	in.mu.Lock()
	defer in.mu.Unlock()

	if id, ok := in.ids[s]; ok {
		return id
	}
	id := len(in.strings)
	in.strings = append(in.strings, s)
	in.ids[s] = id
	return id
}

// Resolve returns the string a handle was interned from. It panics if
// id was never returned by Intern on this interner, since that
// indicates a programming error rather than recoverable bad input.
func (in *StringInterner) Resolve(id int) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.strings[id]
}

// Len reports how many distinct strings have been interned.
func (in *StringInterner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.strings)
}

// Global is the process-wide string interner shared by pkgid, resolver,
// and unitgraph so that identical package/feature/triple names compare
// by handle rather than by repeated string comparison.
var Global = NewStringInterner()

// NormalizePath cleans a path the same way file identifiers are
// normalized throughout this codebase: strip a leading "./", run
// filepath.Clean, convert to forward slashes, and strip any leading
// slash so the result is relative-looking regardless of platform.
func NormalizePath(path string) string {
	p := strings.TrimPrefix(path, "./")
	p = filepath.Clean(p)
	p = filepath.ToSlash(p)
	return strings.TrimPrefix(p, "/")
}

// Key produces a stable, fixed-width content key for a compound
// identity made of several parts (used by the unit interner to key
// on package+target+profile+kind+mode+features tuples). The parts are
// joined with \x1f; a joined key of at most maxVerbatimKeyBytes bytes,
// however many parts it has, is returned verbatim for readability in
// logs and debug dumps; anything longer is folded into a sha256 hex
// digest so keys never grow unbounded.
func Key(parts ...string) string {
	joined := strings.Join(parts, "\x1f")
	if len(joined) <= maxVerbatimKeyBytes {
		return joined
	}
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
