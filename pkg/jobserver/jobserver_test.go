// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package jobserver

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseMakeflagsAuth(t *testing.T) {
	r, w, ok := ParseMakeflagsAuth("-j --jobserver-auth=3,4 --other-flag")
	require.True(t, ok)
	require.Equal(t, 3, r)
	require.Equal(t, 4, w)

	r, w, ok = ParseMakeflagsAuth("--jobserver-fds=9,10")
	require.True(t, ok)
	require.Equal(t, 9, r)
	require.Equal(t, 10, w)

	_, _, ok = ParseMakeflagsAuth("-j4")
	require.False(t, ok)

	_, _, ok = ParseMakeflagsAuth("")
	require.False(t, ok)
}

func TestInherited_AcquireReleaseRoundTrips(t *testing.T) {
	rf, wf, err := os.Pipe()
	require.NoError(t, err)
	defer rf.Close()
	defer wf.Close()

	// Seed the pipe with two tokens, as a parent make process would.
	_, err = wf.Write([]byte{'+', '+'})
	require.NoError(t, err)

	client := NewInherited(int(rf.Fd()), int(wf.Fd()))
	defer client.Close()

	ctx := context.Background()
	tok1, err := client.Acquire(ctx)
	require.NoError(t, err)
	tok2, err := client.Acquire(ctx)
	require.NoError(t, err)

	tok1.Release()
	tok2.Release()

	// Both bytes must have been written back; a third acquire should
	// succeed only because of those releases, not because the pipe had
	// more than two tokens to begin with.
	tok3, err := client.Acquire(ctx)
	require.NoError(t, err)
	tok3.Release()
}

func TestInternal_BoundsConcurrentTokens(t *testing.T) {
	client := NewInternal(1)
	defer client.Close()

	ctx := context.Background()
	tok, err := client.Acquire(ctx)
	require.NoError(t, err)

	acquireCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = client.Acquire(acquireCtx)
	require.Error(t, err, "second acquire must block while the only token is held")

	tok.Release()

	tok2, err := client.Acquire(ctx)
	require.NoError(t, err)
	tok2.Release()
}

func TestInternal_ZeroTokensNeverAcquires(t *testing.T) {
	client := NewInternal(0)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Acquire(ctx)
	require.Error(t, err)
}

func TestFromEnvironment_FallsBackToInternalWithoutMakeflags(t *testing.T) {
	t.Setenv("MAKEFLAGS", "")
	client, inherited := FromEnvironment(4)
	defer client.Close()
	require.False(t, inherited)
	require.IsType(t, &Internal{}, client)
}
