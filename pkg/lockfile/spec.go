// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package lockfile

import (
	"fmt"
	"strings"

	"github.com/blang/semver/v4"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// ParseDependencySpec parses one "{name} {version} {source}" string
// (a two-field "{name} {version}" form without a source is also
// accepted) back into a PackageId.
func ParseDependencySpec(spec string) (pkgid.PackageId, error) {
	fields := strings.Fields(spec)
	if len(fields) < 2 {
		return pkgid.PackageId{}, fmt.Errorf("lockfile: malformed dependency spec %q", spec)
	}

	v, err := semver.Parse(fields[1])
	if err != nil {
		return pkgid.PackageId{}, fmt.Errorf("lockfile: dependency spec %q: %w", spec, err)
	}

	id := pkgid.PackageId{Name: fields[0], Version: v}
	if len(fields) >= 3 {
		src, err := parseSourceId(fields[2])
		if err != nil {
			return pkgid.PackageId{}, fmt.Errorf("lockfile: dependency spec %q: %w", spec, err)
		}
		id.Source = src
	}
	return id, nil
}

// parseSourceId is the inverse of SourceId.String.
func parseSourceId(s string) (pkgid.SourceId, error) {
	kind, rest, ok := strings.Cut(s, "+")
	if !ok {
		return pkgid.SourceId{}, fmt.Errorf("missing '+' in source string %q", s)
	}

	switch kind {
	case "path":
		return pkgid.SourceId{Kind: pkgid.SourceKindPath, URL: rest}, nil
	case "git":
		url, ref, _ := strings.Cut(rest, "?rev=")
		return pkgid.SourceId{Kind: pkgid.SourceKindGit, URL: url, GitRef: ref}, nil
	case "registry":
		return pkgid.SourceId{Kind: pkgid.SourceKindRegistry, URL: rest}, nil
	case "local-registry":
		return pkgid.SourceId{Kind: pkgid.SourceKindLocalRegistry, URL: rest}, nil
	case "directory":
		return pkgid.SourceId{Kind: pkgid.SourceKindDirectory, URL: rest}, nil
	default:
		return pkgid.SourceId{}, fmt.Errorf("unknown source kind %q", kind)
	}
}

// Locked extracts the name→PackageId map a resolver.Options.Locked
// field expects, so a subsequent resolve prefers every package this
// lockfile already pinned.
func (d Document) Locked() (map[string]pkgid.PackageId, error) {
	out := make(map[string]pkgid.PackageId, len(d.Packages))
	for _, entry := range d.Packages {
		v, err := semver.Parse(entry.Version)
		if err != nil {
			return nil, fmt.Errorf("lockfile: package %s: %w", entry.Name, err)
		}
		id := pkgid.PackageId{Name: entry.Name, Version: v}
		if entry.Source != "" {
			src, err := parseSourceId(entry.Source)
			if err != nil {
				return nil, fmt.Errorf("lockfile: package %s: %w", entry.Name, err)
			}
			id.Source = src
		}
		out[entry.Name] = id
	}
	return out, nil
}
