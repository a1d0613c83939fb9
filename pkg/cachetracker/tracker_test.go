// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package cachetracker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := Open(filepath.Join(t.TempDir(), "global-cache"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestTracker_MarkUsedAndFlush(t *testing.T) {
	tr := openTestTracker(t)
	key := RegistryCrateKey("crates.io", "left-pad", "1.2.0")

	tr.MarkUsed(KindRegistryCrate, key)
	require.NoError(t, tr.Flush())

	var lastUse int64
	err := tr.db.QueryRow(`SELECT last_use FROM registry_crate WHERE name = ? AND version = ?`, "left-pad", "1.2.0").Scan(&lastUse)
	require.NoError(t, err)
	require.Greater(t, lastUse, int64(0))
}

func TestTracker_GCEvictsLRU(t *testing.T) {
	// S6: entries A, B, C with last-use t-30d, t-10d, t-1d; gc with
	// max-age 14d must remove A and retain B and C.
	tr := openTestTracker(t)

	now := time.Now()
	seed := func(name string, age time.Duration) {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, writeFixtureFile(path))
		require.NoError(t, tr.RecordArtifact(KindRegistryCrate, RegistryCrateKey("crates.io", name, "1.0.0"), path, 10))
		ts := now.Add(-age).Unix()
		_, err := tr.db.Exec(`UPDATE registry_crate SET last_use = ? WHERE name = ?`, ts, name)
		require.NoError(t, err)
	}

	seed("a", 30*24*time.Hour)
	seed("b", 10*24*time.Hour)
	seed("c", 1*24*time.Hour)

	result, err := tr.GC(Policy{MaxAge: 14 * 24 * time.Hour})
	require.NoError(t, err)
	require.Len(t, result.Removed, 1)
	require.Equal(t, RegistryCrateKey("crates.io", "a", "1.0.0"), result.Removed[0].Key)

	var count int
	require.NoError(t, tr.db.QueryRow(`SELECT COUNT(*) FROM registry_crate`).Scan(&count))
	require.Equal(t, 2, count, "b and c must survive gc")
}

func TestTracker_GCRespectsSizeCap(t *testing.T) {
	tr := openTestTracker(t)

	seed := func(name string, size int64) {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, writeFixtureFile(path))
		require.NoError(t, tr.RecordArtifact(KindRegistryCrate, RegistryCrateKey("crates.io", name, "1.0.0"), path, size))
		time.Sleep(1100 * time.Millisecond) // distinct last_use ordering (last_use has one-second resolution)
	}

	seed("old", 100)
	seed("newer", 100)

	result, err := tr.GC(Policy{MaxCrateBytes: 150})
	require.NoError(t, err)
	require.Len(t, result.Removed, 1)
	require.Equal(t, RegistryCrateKey("crates.io", "old", "1.0.0"), result.Removed[0].Key, "oldest entry must be evicted first once over budget")
}

func writeFixtureFile(path string) error {
	return os.WriteFile(path, []byte("fixture"), 0o644)
}
