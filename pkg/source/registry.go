// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package source

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/klauspost/compress/gzip"

	"github.com/kraklabs/cargo-core/pkg/cachetracker"
	"github.com/kraklabs/cargo-core/pkg/filelock"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

// indexEntry is one newline-delimited JSON record of a sparse registry
// index file, one per published version of a package.
type indexEntry struct {
	Name         string              `json:"name"`
	Version      string              `json:"vers"`
	Checksum     string              `json:"cksum"`
	Yanked       bool                `json:"yanked"`
	Dependencies []indexEntryDep     `json:"deps"`
	Features     map[string][]string `json:"features"`
}

type indexEntryDep struct {
	Name            string `json:"name"`
	Requirement     string `json:"req"`
	Kind            string `json:"kind"` // "normal", "dev", "build"
	Optional        bool   `json:"optional"`
	DefaultFeatures bool   `json:"default_features"`
	Package         string `json:"package"` // explicit rename source name, if any
}

// Fetcher abstracts the network transport a RegistrySource uses, so
// tests can substitute an in-memory index without a live HTTP server.
type Fetcher interface {
	Fetch(url string) ([]byte, error)
}

// HTTPFetcher is the default Fetcher, backed by net/http. This
// package does not implement a network protocol of its own (a
// Non-goal); it merely drives the standard client.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("fetch %s: %w", url, errNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

var errNotFound = fmt.Errorf("not found")

// RegistrySource serves package Summaries from a sparse HTTP index
// (one file per package name, newline-delimited JSON records) and
// downloads .crate files on demand, tracking both in the shared
// cachetracker and guarding writes with a filelock.
type RegistrySource struct {
	baseURL    string
	fetcher    Fetcher
	tracker    *cachetracker.Tracker
	lockDir    string
	extractDir string
	load       Loader

	index map[string][]indexEntry
}

// NewRegistrySource creates a RegistrySource against baseURL (e.g.
// "https://index.example.invalid"). tracker, lockDir and extractDir
// may be nil/"" to skip cache bookkeeping (tests); when extractDir is
// empty, FinishDownload extracts into a fresh os.MkdirTemp directory.
func NewRegistrySource(baseURL string, fetcher Fetcher, tracker *cachetracker.Tracker, lockDir, extractDir string, load Loader) *RegistrySource {
	return &RegistrySource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		fetcher:    fetcher,
		tracker:    tracker,
		lockDir:    lockDir,
		extractDir: extractDir,
		load:       load,
		index:      make(map[string][]indexEntry),
	}
}

func (s *RegistrySource) SourceID() pkgid.SourceId {
	return pkgid.SourceId{Kind: pkgid.SourceKindRegistry, URL: s.baseURL}
}

// Update is a no-op: this sparse-index implementation fetches each
// package's index file lazily, on the first Query that names it,
// rather than mirroring the whole index up front.
func (s *RegistrySource) Update() error { return nil }

func (s *RegistrySource) Query(dep pkgid.Dependency) ([]pkgid.Summary, error) {
	entries, err := s.entriesFor(dep.Name)
	if err != nil {
		return nil, err
	}

	var out []pkgid.Summary
	for _, e := range entries {
		if e.Yanked {
			continue
		}
		v, err := semver.Parse(e.Version)
		if err != nil {
			continue
		}
		if dep.Requirement != nil && !dep.Requirement(v) {
			continue
		}
		out = append(out, toSummary(s.SourceID(), e))
	}
	return out, nil
}

func (s *RegistrySource) entriesFor(name string) ([]indexEntry, error) {
	if cached, ok := s.index[name]; ok {
		return cached, nil
	}

	path := indexPath(name)
	data, err := s.fetcher.Fetch(s.baseURL + "/" + path)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", s.baseURL, err)
	}

	var entries []indexEntry
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e indexEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("registry %s: parse index entry for %s: %w", s.baseURL, name, err)
		}
		entries = append(entries, e)
	}
	s.index[name] = entries
	return entries, nil
}

// indexPath mirrors crates.io's sparse index layout: 1/2/3-character
// names get a length-prefixed directory, everything else is bucketed
// by its first four characters.
func indexPath(name string) string {
	lower := strings.ToLower(name)
	switch len(lower) {
	case 1:
		return "1/" + lower
	case 2:
		return "2/" + lower
	case 3:
		return "3/" + lower[:1] + "/" + lower
	default:
		return lower[:2] + "/" + lower[2:4] + "/" + lower
	}
}

func toSummary(src pkgid.SourceId, e indexEntry) pkgid.Summary {
	v, _ := semver.Parse(e.Version)
	deps := make([]pkgid.Dependency, 0, len(e.Dependencies))
	for _, d := range e.Dependencies {
		r, err := semver.ParseRange(d.Requirement)
		if err != nil {
			continue
		}
		deps = append(deps, pkgid.Dependency{
			Name:            d.Name,
			Requirement:     r,
			RequirementText: d.Requirement,
			Source:          src,
			Kind:            dependencyKindFromString(d.Kind),
			Optional:        d.Optional,
			DefaultFeatures: d.DefaultFeatures,
			ExplicitRename:  explicitRename(d),
		})
	}
	return pkgid.Summary{
		PackageId:    pkgid.PackageId{Name: e.Name, Version: v, Source: src},
		Dependencies: deps,
		Features:     e.Features,
		Checksum:     e.Checksum,
	}
}

func explicitRename(d indexEntryDep) string {
	if d.Package != "" && d.Package != d.Name {
		return d.Name
	}
	return ""
}

func dependencyKindFromString(kind string) pkgid.DependencyKind {
	switch kind {
	case "dev":
		return pkgid.KindDev
	case "build":
		return pkgid.KindBuild
	default:
		return pkgid.KindNormal
	}
}

func (s *RegistrySource) Download(id pkgid.PackageId) (MaybePackage, error) {
	entries, err := s.entriesFor(id.Name)
	if err != nil {
		return MaybePackage{}, err
	}
	for _, e := range entries {
		if e.Version != id.Version.String() {
			continue
		}
		url := fmt.Sprintf("%s/api/v1/crates/%s/%s/download", s.baseURL, id.Name, id.Version)
		return MaybePackage{Download: &DownloadDescriptor{URL: url, Descriptor: e.Checksum}}, nil
	}
	return MaybePackage{}, fmt.Errorf("registry %s: no entry for %s", s.baseURL, id)
}

// FinishDownload verifies data against the checksum carried in
// descriptor, extracts the gzipped tarball under a DownloadExclusive
// filelock, records both the crate and its extracted tree in the
// cache tracker, and hands the extracted directory to load.
func (s *RegistrySource) FinishDownload(id pkgid.PackageId, descriptor string, data []byte) (pkgid.Package, error) {
	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if descriptor != "" && got != descriptor {
		return pkgid.Package{}, fmt.Errorf("registry %s: checksum mismatch for %s: want %s got %s", s.baseURL, id, descriptor, got)
	}

	if s.lockDir != "" {
		lock, err := filelock.Acquire(s.lockDir+"/download.lock", filelock.DownloadExclusive, 0)
		if err != nil {
			return pkgid.Package{}, fmt.Errorf("acquire download lock: %w", err)
		}
		defer lock.Release()
	}

	dest := s.extractDir
	if dest == "" {
		var err error
		dest, err = os.MkdirTemp("", "cargo-core-crate-*")
		if err != nil {
			return pkgid.Package{}, fmt.Errorf("registry %s: create extract dir: %w", s.baseURL, err)
		}
	}
	srcDir := filepath.Join(dest, fmt.Sprintf("%s-%s", id.Name, id.Version))
	if err := extractCrate(data, srcDir); err != nil {
		return pkgid.Package{}, fmt.Errorf("registry %s: extract %s: %w", s.baseURL, id, err)
	}

	if s.tracker != nil {
		key := cachetracker.RegistryCrateKey(s.baseURL, id.Name, id.Version.String())
		s.tracker.MarkUsed(cachetracker.KindRegistryCrate, key)
		s.tracker.MarkUsed(cachetracker.KindRegistrySrc, cachetracker.RegistrySrcKey(s.baseURL, id.Name, id.Version.String()))
	}

	return s.load(srcDir)
}

// extractCrate unpacks a .crate file (a gzipped tar archive) into
// dir. The gzip layer is decoded with klauspost/compress, already
// pulled in transitively for its pack-format support; tar itself has
// no third-party contender anywhere in the corpus, so this is the one
// place this package reaches for the standard library's archive/tar.
func extractCrate(data []byte, dir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target := filepath.Join(dir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}

func (s *RegistrySource) Fingerprint(pkg pkgid.Package) (string, error) {
	return pkg.Summary.Checksum, nil
}

func (s *RegistrySource) Verify(id pkgid.PackageId) error {
	entries, err := s.entriesFor(id.Name)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Version == id.Version.String() {
			return nil
		}
	}
	return fmt.Errorf("registry %s: cannot verify unknown package %s", s.baseURL, id)
}
