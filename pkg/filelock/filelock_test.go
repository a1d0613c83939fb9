// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package filelock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryAcquire_SharedAllowsMultipleHolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")

	l1, ok, err := TryAcquire(path, Shared)
	require.NoError(t, err)
	require.True(t, ok)
	defer l1.Release()

	l2, ok, err := TryAcquire(path, Shared)
	require.NoError(t, err)
	require.True(t, ok, "a second shared holder must be allowed")
	defer l2.Release()
}

func TestTryAcquire_ExclusiveExcludesEveryone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")

	excl, ok, err := TryAcquire(path, DownloadExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	defer excl.Release()

	_, ok, err = TryAcquire(path, Shared)
	require.NoError(t, err)
	require.False(t, ok, "shared must not be grantable while exclusive is held")

	_, ok, err = TryAcquire(path, DownloadExclusive)
	require.NoError(t, err)
	require.False(t, ok, "a second exclusive holder must not be allowed")
}

func TestTryAcquire_SharedExcludesExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")

	shared, ok, err := TryAcquire(path, Shared)
	require.NoError(t, err)
	require.True(t, ok)
	defer shared.Release()

	_, ok, err = TryAcquire(path, DownloadExclusive)
	require.NoError(t, err)
	require.False(t, ok, "exclusive must not be grantable while a shared holder is active")
}

func TestRelease_AllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")

	l, ok, err := TryAcquire(path, DownloadExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	l.Release()

	l2, ok, err := TryAcquire(path, DownloadExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	l2.Release()
}

func TestRelease_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")
	l, ok, err := TryAcquire(path, Shared)
	require.NoError(t, err)
	require.True(t, ok)

	l.Release()
	require.NotPanics(t, func() { l.Release() })

	var nilLock *Lock
	require.NotPanics(t, func() { nilLock.Release() })
}

func TestUpgrade_ReleasesAndReacquiresExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")

	shared, ok, err := TryAcquire(path, Shared)
	require.NoError(t, err)
	require.True(t, ok)

	excl, err := shared.Upgrade(time.Second)
	require.NoError(t, err)
	defer excl.Release()
	require.Equal(t, DownloadExclusive, excl.Mode())

	_, ok, err = TryAcquire(path, Shared)
	require.NoError(t, err)
	require.False(t, ok, "the upgraded lock must now exclude new shared holders")
}

func TestUpgrade_RejectsNonSharedSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")
	excl, ok, err := TryAcquire(path, DownloadExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	defer excl.Release()

	_, err = excl.Upgrade(time.Second)
	require.Error(t, err)
}

func TestAcquire_TimesOutWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")
	holder, ok, err := TryAcquire(path, DownloadExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	defer holder.Release()

	_, err = Acquire(path, DownloadExclusive, 250*time.Millisecond)
	require.Error(t, err)
}

func TestAcquire_UnblocksOnRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")
	holder, ok, err := TryAcquire(path, DownloadExclusive)
	require.NoError(t, err)
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		time.Sleep(100 * time.Millisecond)
		holder.Release()
	}()

	l, err := Acquire(path, DownloadExclusive, 2*time.Second)
	require.NoError(t, err)
	defer l.Release()
	close(done)
}

func TestReadInfo_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.lock")
	info, err := ReadInfo(path)
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestReadInfo_ReflectsExclusiveHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")
	l, ok, err := TryAcquire(path, DownloadExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	defer l.Release()

	info, err := ReadInfo(path)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, os.Getpid(), info.PID)
}

func TestIsStale_FalseForLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")
	l, ok, err := TryAcquire(path, DownloadExclusive)
	require.NoError(t, err)
	require.True(t, ok)
	defer l.Release()

	require.False(t, IsStale(path))
}

func TestIsStale_TrueForDeadPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.lock")
	require.NoError(t, os.WriteFile(path, []byte("999999999 1700000000\n"), 0o644))
	require.True(t, IsStale(path))
}
