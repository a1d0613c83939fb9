// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package source

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"

	"github.com/blang/semver/v4"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

type fakeFetcher struct {
	byURL map[string][]byte
}

func (f fakeFetcher) Fetch(url string) ([]byte, error) {
	data, ok := f.byURL[url]
	if !ok {
		return nil, errNotFound
	}
	return data, nil
}

func widgetIndex() []byte {
	return []byte(`{"name":"widget","vers":"1.0.0","cksum":"aaa","deps":[],"features":{}}
{"name":"widget","vers":"1.1.0","cksum":"bbb","deps":[{"name":"gadget","req":"^1.0","kind":"normal"}],"features":{}}
{"name":"widget","vers":"2.0.0","cksum":"ccc","yanked":true,"deps":[],"features":{}}
`)
}

func newTestRegistry() *RegistrySource {
	fetcher := fakeFetcher{byURL: map[string][]byte{
		"https://index.example/wi/dg/widget": widgetIndex(),
	}}
	return NewRegistrySource("https://index.example", fetcher, nil, "", "", nil)
}

func TestRegistrySource_QueryFiltersYankedAndRequirement(t *testing.T) {
	s := newTestRegistry()
	req, err := semver.ParseRange(">=1.0.0 <2.0.0")
	require.NoError(t, err)

	sums, err := s.Query(pkgid.Dependency{Name: "widget", Requirement: req})
	require.NoError(t, err)
	require.Len(t, sums, 2)
	for _, sum := range sums {
		require.NotEqual(t, "2.0.0", sum.PackageId.Version.String())
	}
}

func TestRegistrySource_QueryPopulatesDependencies(t *testing.T) {
	s := newTestRegistry()
	req, err := semver.ParseRange("1.1.0")
	require.NoError(t, err)

	sums, err := s.Query(pkgid.Dependency{Name: "widget", Requirement: req})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	require.Len(t, sums[0].Dependencies, 1)
	require.Equal(t, "gadget", sums[0].Dependencies[0].Name)
}

func TestRegistrySource_DownloadUnknownVersionErrors(t *testing.T) {
	s := newTestRegistry()
	_, err := s.Download(pkgid.PackageId{Name: "widget", Version: semver.MustParse("9.9.9")})
	require.Error(t, err)
}

func TestRegistrySource_FinishDownloadRejectsChecksumMismatch(t *testing.T) {
	s := newTestRegistry()
	_, err := s.FinishDownload(pkgid.PackageId{Name: "widget", Version: semver.MustParse("1.0.0")}, "deadbeef", []byte("not matching"))
	require.Error(t, err)
}

func TestRegistrySource_VerifyKnownVersionSucceeds(t *testing.T) {
	s := newTestRegistry()
	err := s.Verify(pkgid.PackageId{Name: "widget", Version: semver.MustParse("1.0.0")})
	require.NoError(t, err)
}

func buildCrateTarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Size: int64(len(content)), Mode: 0o644, Typeflag: tar.TypeReg}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestRegistrySource_FinishDownloadExtractsAndLoads(t *testing.T) {
	s := newTestRegistry()
	extractDir := t.TempDir()
	s.extractDir = extractDir

	var loadedDir string
	s.load = func(dir string) (pkgid.Package, error) {
		loadedDir = dir
		return pkgid.Package{Summary: pkgid.Summary{PackageId: pkgid.PackageId{Name: "widget"}}}, nil
	}

	data := buildCrateTarball(t, map[string]string{"widget-1.0.0/src/lib.rs": "fn main() {}"})
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	pkg, err := s.FinishDownload(pkgid.PackageId{Name: "widget", Version: semver.MustParse("1.0.0")}, checksum, data)
	require.NoError(t, err)
	require.Equal(t, "widget", pkg.Summary.PackageId.Name)
	require.NotEmpty(t, loadedDir)

	extracted, err := os.ReadFile(loadedDir + "/widget-1.0.0/src/lib.rs")
	require.NoError(t, err)
	require.Equal(t, "fn main() {}", string(extracted))
}

func TestIndexPath_BucketsByNameLength(t *testing.T) {
	require.Equal(t, "3/s/std", indexPath("std"))
	require.Equal(t, "wi/dg/widget", indexPath("widget"))
	require.Equal(t, "1/a", indexPath("a"))
}
