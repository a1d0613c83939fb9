// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cargo-core/pkg/jobserver"
)

func TestTokenPool_FirstAcquireUsesImplicitTokenWithoutJobserver(t *testing.T) {
	p := &tokenPool{js: jobserver.NewInternal(0)}

	release, err := p.acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}

func TestTokenPool_SecondConcurrentAcquireNeedsJobserverToken(t *testing.T) {
	p := &tokenPool{js: jobserver.NewInternal(1)}

	release1, err := p.acquire(context.Background())
	require.NoError(t, err)
	defer release1()

	release2, err := p.acquire(context.Background())
	require.NoError(t, err)
	defer release2()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.acquire(ctx)
	require.Error(t, err)
}

func TestTokenPool_ReleaseReturnsImplicitTokenForReuse(t *testing.T) {
	p := &tokenPool{js: jobserver.NewInternal(0)}

	release, err := p.acquire(context.Background())
	require.NoError(t, err)
	release()

	release2, err := p.acquire(context.Background())
	require.NoError(t, err)
	release2()
}
