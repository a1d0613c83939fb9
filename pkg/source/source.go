// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package source implements the Source abstraction of §4.1: a
// polymorphic capability set over where a package's metadata and
// bytes come from (a local path, a git repository, a registry index,
// a vendored directory, or a composition of sources).
//
// This package never parses a manifest itself (a Non-goal: "it does
// not implement ... TOML parsing; it consumes their results"); every
// variant that needs to turn a source tree into a pkgid.Package is
// handed a Loader by its caller, the way the reference corpus's
// repository loader is handed an already-resolved RepoSource rather
// than discovering repository shape itself.
package source

import (
	"errors"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// ErrPending is returned by Query and Download when the operation
// cannot complete synchronously; the caller then calls BlockUntilReady
// and retries, per the cooperative-suspension contract of §5.
// pkg/scheduler does not handle ErrPending.
var ErrPending = errors.New("source: operation pending, call BlockUntilReady and retry")

// Loader turns a materialized source tree rooted at dir into a
// pkgid.Package. Supplied by the embedder; this package never reads or
// parses manifest files on its own.
type Loader func(dir string) (pkgid.Package, error)

// DownloadDescriptor is returned by Download when the package's bytes
// are not yet local: a URL to fetch and an opaque descriptor the
// driver passes back to FinishDownload unchanged.
type DownloadDescriptor struct {
	URL        string
	Descriptor string
}

// MaybePackage is either a package whose bytes are already on disk
// (Ready) or one that still needs to be fetched (Download).
type MaybePackage struct {
	Ready      *pkgid.Package
	Download   *DownloadDescriptor
}

// IsReady reports whether m carries a materialized Package.
func (m MaybePackage) IsReady() bool { return m.Ready != nil }

// Source is the capability set every source variant implements. Not
// every method is meaningful for every variant (PathSource.Update is a
// no-op, for instance); implementations document their own deviations.
type Source interface {
	SourceID() pkgid.SourceId

	// Update refreshes index/remote state. May perform I/O.
	Update() error

	// Query returns every Summary this source has matching dep. May
	// return ErrPending.
	Query(dep pkgid.Dependency) ([]pkgid.Summary, error)

	// Download resolves id to a MaybePackage. May return ErrPending.
	Download(id pkgid.PackageId) (MaybePackage, error)

	// FinishDownload turns downloaded bytes into a Package after the
	// driver fetched a DownloadDescriptor's URL.
	FinishDownload(id pkgid.PackageId, descriptor string, data []byte) (pkgid.Package, error)

	// Fingerprint returns an opaque stability token for pkg: constant
	// iff the package's delivered bytes are constant.
	Fingerprint(pkg pkgid.Package) (string, error)

	// Verify performs optional expensive verification (e.g. checksum
	// re-check) just before compilation.
	Verify(id pkgid.PackageId) error
}

// BlockUntilReady waits on whatever srcs collectively need, for a
// caller whose every other unit of work is also suspended. Nothing in
// this module calls it. Implementations that never
// return ErrPending can leave this a no-op; the default here is a
// no-op suitable for every variant in this package, since none of them
// perform true asynchronous I/O that outlives a single method call.
func BlockUntilReady(srcs ...Source) {
	_ = srcs
}
