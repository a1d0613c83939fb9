// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package fingerprint implements the per-unit deterministic digest and
// on-disk freshness cache described in §4.4: a stable hash over a
// unit's compiler version, target triple, profile, declared source
// files, rustflags, and the fingerprints of its dependencies, compared
// byte-wise against the previous run's persisted value to decide
// Fresh (reuse outputs) vs Dirty (rebuild).
//
// The deterministic-hash-of-a-composed-string idiom is grounded on
// this codebase's existing id-generation scheme (sha256 over a
// pipe-joined field list, normalising paths to forward slashes first)
// generalized from file/function identity to build-unit freshness.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/kraklabs/cargo-core/pkg/interning"
)

// SourceFile is one (path, mtime, size) tuple the compiler's dep-info
// reported as having been read to produce a unit's output.
type SourceFile struct {
	Path  string // normalised relative to the configured dep-info basedir
	MTime int64  // unix seconds
	Size  int64
}

// Inputs is everything Compute needs to derive a Fingerprint. Callers
// normalise every SourceFile.Path before calling Compute; Compute sorts
// Sources, DepFingerprints and NativeLibs itself, so their order does
// not matter.
type Inputs struct {
	CompilerVersion string
	TargetTriple    string
	ProfileHash     string
	Sources         []SourceFile
	RustflagsHash   string
	EnvHash         string // digest of env vars the build script declared rerun-if-env-changed for
	DepFingerprints []string
	NativeLibs      []string
}

// Fingerprint is the computed digest plus the inputs that produced it,
// persisted verbatim so the next run can compare without recomputing
// from scratch.
type Fingerprint struct {
	Digest string
	Inputs Inputs
}

// Compute derives a Fingerprint from in. Two Inputs with identical
// field values (after the caller's basedir-normalisation; slice order
// is irrelevant because Compute sorts) always produce the same Digest, on any machine, per §4.4 invariant
// 5.
func Compute(in Inputs) Fingerprint {
	sources := make([]SourceFile, len(in.Sources))
	copy(sources, in.Sources)
	sort.Slice(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })

	deps := append([]string(nil), in.DepFingerprints...)
	sort.Strings(deps)

	libs := append([]string(nil), in.NativeLibs...)
	sort.Strings(libs)

	var b strings.Builder
	b.WriteString(in.CompilerVersion)
	b.WriteByte('\x1f')
	b.WriteString(in.TargetTriple)
	b.WriteByte('\x1f')
	b.WriteString(in.ProfileHash)
	b.WriteByte('\x1f')
	for _, s := range sources {
		b.WriteString(s.Path)
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(s.MTime, 10))
		b.WriteByte(',')
		b.WriteString(strconv.FormatInt(s.Size, 10))
		b.WriteByte(';')
	}
	b.WriteByte('\x1f')
	b.WriteString(in.RustflagsHash)
	b.WriteByte('\x1f')
	b.WriteString(in.EnvHash)
	b.WriteByte('\x1f')
	b.WriteString(strings.Join(deps, ","))
	b.WriteByte('\x1f')
	b.WriteString(strings.Join(libs, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return Fingerprint{Digest: hex.EncodeToString(sum[:]), Inputs: Inputs{
		CompilerVersion: in.CompilerVersion,
		TargetTriple:    in.TargetTriple,
		ProfileHash:     in.ProfileHash,
		Sources:         sources,
		RustflagsHash:   in.RustflagsHash,
		EnvHash:         in.EnvHash,
		DepFingerprints: deps,
		NativeLibs:      libs,
	}}
}

// NormalizeSourcePath makes path relative to basedir and forward-
// slashed, the way every other path-derived identifier in this module
// is normalised, so the fingerprint is stable across machines with
// different absolute paths (§4.4).
func NormalizeSourcePath(basedir, path string) string {
	rel := path
	if basedir != "" && strings.HasPrefix(path, basedir) {
		rel = strings.TrimPrefix(path, basedir)
		rel = strings.TrimPrefix(rel, "/")
		rel = strings.TrimPrefix(rel, string([]byte{'\\'}))
	}
	return interning.NormalizePath(rel)
}

// BuildKey is the per-unit cache-directory name: the package name
// plus a short hash of everything that distinguishes this unit from
// another build of the same package (target, kind, mode, profile,
// features), per §4.4's `buildkey(u) = "{pkg-name}-{short-hash}"`.
func BuildKey(pkgName, distinguisher string) string {
	sum := sha256.Sum256([]byte(distinguisher))
	return pkgName + "-" + hex.EncodeToString(sum[:8])
}
