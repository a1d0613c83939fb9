// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package source

import (
	"testing"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

func testLoader(id pkgid.PackageId) Loader {
	return func(dir string) (pkgid.Package, error) {
		return pkgid.Package{Summary: pkgid.Summary{PackageId: id}}, nil
	}
}

func TestPathSource_QueryMatchesOwnPackage(t *testing.T) {
	v := semver.MustParse("1.2.3")
	id := pkgid.PackageId{Name: "widget", Version: v, Source: pkgid.SourceId{Kind: pkgid.SourceKindPath, URL: "/tmp/widget"}}
	s, err := NewPathSource("/tmp/widget", testLoader(id))
	require.NoError(t, err)

	req, err := semver.ParseRange("1.2.3")
	require.NoError(t, err)
	sums, err := s.Query(pkgid.Dependency{Name: "widget", Requirement: req})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	require.Equal(t, id, sums[0].PackageId)
}

func TestPathSource_QueryMismatchedNameReturnsEmpty(t *testing.T) {
	v := semver.MustParse("1.0.0")
	id := pkgid.PackageId{Name: "widget", Version: v}
	s, err := NewPathSource("/tmp/widget", testLoader(id))
	require.NoError(t, err)

	req, err := semver.ParseRange("1.0.0")
	require.NoError(t, err)
	sums, err := s.Query(pkgid.Dependency{Name: "other", Requirement: req})
	require.NoError(t, err)
	require.Empty(t, sums)
}

func TestPathSource_DownloadIsAlwaysReady(t *testing.T) {
	v := semver.MustParse("1.0.0")
	id := pkgid.PackageId{Name: "widget", Version: v}
	s, err := NewPathSource("/tmp/widget", testLoader(id))
	require.NoError(t, err)

	mp, err := s.Download(id)
	require.NoError(t, err)
	require.True(t, mp.IsReady())
}

func TestPathSource_DownloadUnknownIDErrors(t *testing.T) {
	v := semver.MustParse("1.0.0")
	id := pkgid.PackageId{Name: "widget", Version: v}
	other := pkgid.PackageId{Name: "widget", Version: semver.MustParse("2.0.0")}
	s, err := NewPathSource("/tmp/widget", testLoader(id))
	require.NoError(t, err)

	_, err = s.Download(other)
	require.Error(t, err)
}
