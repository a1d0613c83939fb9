// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package fingerprint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	fp := Compute(baseInputs())
	require.NoError(t, store.Save("left-pad-aabbccdd", fp, []byte("out.d: src/lib.rs\n")))

	loaded, ok := store.Load("left-pad-aabbccdd")
	require.True(t, ok)
	require.Equal(t, fp.Digest, loaded.Digest)

	depInfo, err := filepath.Glob(filepath.Join(store.unitDir("left-pad-aabbccdd"), "dep-info"))
	require.NoError(t, err)
	require.Len(t, depInfo, 1)
}

func TestStore_CompareFreshVsDirty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	fp := Compute(baseInputs())
	require.Equal(t, Dirty, store.Compare("unit", fp), "no prior fingerprint means dirty")

	require.NoError(t, store.Save("unit", fp, nil))
	require.Equal(t, Fresh, store.Compare("unit", fp))

	changed := baseInputs()
	changed.CompilerVersion = "rustc 2.0.0"
	require.Equal(t, Dirty, store.Compare("unit", Compute(changed)))
}

func TestStore_Clear(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	fp := Compute(baseInputs())
	require.NoError(t, store.Save("unit", fp, nil))
	require.Equal(t, Fresh, store.Compare("unit", fp))

	require.NoError(t, store.Clear("unit"))
	require.Equal(t, Dirty, store.Compare("unit", fp))
}

func TestEnvSnapshot_ChangedDetectsValueAndKeyChanges(t *testing.T) {
	a := EnvSnapshot{"FOO": "1", "BAR": "2"}
	b := EnvSnapshot{"FOO": "1", "BAR": "2"}
	require.False(t, b.Changed(a))

	c := EnvSnapshot{"FOO": "1", "BAR": "3"}
	require.True(t, c.Changed(a))

	d := EnvSnapshot{"FOO": "1"}
	require.True(t, d.Changed(a))
}

func TestStore_EnvSnapshotRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.LoadEnvSnapshot("unit")
	require.False(t, ok)

	snap := EnvSnapshot{"CARGO_FEATURE_X": "1"}
	require.NoError(t, store.SaveEnvSnapshot("unit", snap))

	loaded, ok := store.LoadEnvSnapshot("unit")
	require.True(t, ok)
	require.Equal(t, snap, loaded)
}
