// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package lockfile encodes and decodes a resolver.Resolve as a TOML
// document: a top-level version integer, an array of [[package]]
// tables, and a [metadata] table of opaque, preserved annotations.
package lockfile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
	"github.com/kraklabs/cargo-core/pkg/resolver"
)

// FormatVersion is the lockfile's top-level `version` field. Bumped
// whenever the [[package]] table shape changes incompatibly.
const FormatVersion = 1

// Document is the TOML-serializable shape of a lockfile.
type Document struct {
	Version  int               `toml:"version"`
	Packages []PackageEntry    `toml:"package"`
	Metadata map[string]string `toml:"metadata"`
}

// PackageEntry is one [[package]] table.
type PackageEntry struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Source       string   `toml:"source,omitempty"`
	Dependencies []string `toml:"dependencies,omitempty"`
	Checksum     string   `toml:"checksum,omitempty"`
}

// Encode turns a Resolve into a Document, preserving any existing
// metadata (e.g. a previous lockfile's own [metadata] table, handed in
// via prevMetadata, which Cargo never drops on rewrite).
func Encode(res *resolver.Resolve, prevMetadata map[string]string) Document {
	doc := Document{Version: FormatVersion, Metadata: prevMetadata}

	ids := make([]pkgid.PackageId, 0, len(res.Packages))
	for id := range res.Packages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return packageSortKey(ids[i]) < packageSortKey(ids[j]) })

	for _, id := range ids {
		pkg := res.Packages[id]
		entry := PackageEntry{
			Name:     id.Name,
			Version:  id.Version.String(),
			Source:   id.Source.String(),
			Checksum: pkg.Checksum,
		}

		deps := make([]string, 0, len(pkg.Dependencies))
		for _, depID := range pkg.Dependencies {
			deps = append(deps, encodeDependencySpec(depID))
		}
		sort.Strings(deps)
		entry.Dependencies = deps

		doc.Packages = append(doc.Packages, entry)
	}

	return doc
}

func packageSortKey(id pkgid.PackageId) string {
	return id.Name + " " + id.Version.String()
}

// encodeDependencySpec renders a dependency edge as "{name} {version}
// {source}", per §6. The source is omitted only when
// id.Source.String() is empty; every SourceKind, path included,
// renders a non-empty string, so in practice all three fields are
// written.
func encodeDependencySpec(id pkgid.PackageId) string {
	src := id.Source.String()
	if src == "" {
		return fmt.Sprintf("%s %s", id.Name, id.Version)
	}
	return fmt.Sprintf("%s %s %s", id.Name, id.Version, src)
}

// Marshal renders doc as TOML text.
func Marshal(doc Document) ([]byte, error) {
	var buf strings.Builder
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("lockfile: encode: %w", err)
	}
	return []byte(buf.String()), nil
}

// Unmarshal parses TOML text into a Document.
func Unmarshal(data []byte) (Document, error) {
	var doc Document
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return Document{}, fmt.Errorf("lockfile: decode: %w", err)
	}
	return doc, nil
}

// Read loads and parses the lockfile at path. A missing file is
// reported via the usual os error (os.IsNotExist), not wrapped away,
// since callers need to distinguish "no lockfile yet" from "corrupt
// lockfile".
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return Unmarshal(data)
}

// Write atomically replaces the lockfile at path: encode to a temp
// file in the same directory, then rename over the target, so a crash
// mid-write never leaves a truncated lockfile behind.
func Write(path string, doc Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("lockfile: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("lockfile: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}
