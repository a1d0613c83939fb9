// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

func TestLocalRegistrySource_ScansExtractedCrates(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "widget-1.0.0"), 0o755))

	s, err := NewLocalRegistrySource(root, dirLoaderByName(map[string]string{"widget-1.0.0": "1.0.0"}), nil)
	require.NoError(t, err)

	req, err := semver.ParseRange("1.0.0")
	require.NoError(t, err)
	sums, err := s.Query(pkgid.Dependency{Name: "widget-1.0.0", Requirement: req})
	require.NoError(t, err)
	require.Len(t, sums, 1)
}

func TestLocalRegistrySource_DownloadIsAlwaysReady(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "widget-1.0.0"), 0o755))

	s, err := NewLocalRegistrySource(root, dirLoaderByName(map[string]string{"widget-1.0.0": "1.0.0"}), nil)
	require.NoError(t, err)

	id := pkgid.PackageId{Name: "widget-1.0.0", Version: semver.MustParse("1.0.0")}
	mp, err := s.Download(id)
	require.NoError(t, err)
	require.True(t, mp.IsReady())
}

func TestLocalRegistrySource_VerifyUnknownErrors(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalRegistrySource(root, dirLoaderByName(nil), nil)
	require.NoError(t, err)

	err = s.Verify(pkgid.PackageId{Name: "nope", Version: semver.MustParse("1.0.0")})
	require.Error(t, err)
}
