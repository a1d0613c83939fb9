// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package jobserver

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Internal is a jobserver constructed locally when no parent process
// handed one down, backed by golang.org/x/sync/semaphore as noted in
// §5's "constructed internally if none is present".
type Internal struct {
	sem *semaphore.Weighted
}

// NewInternal creates an internal jobserver with n additional tokens
// beyond the implicit one the scheduler already holds.
func NewInternal(n int) *Internal {
	if n < 0 {
		n = 0
	}
	return &Internal{sem: semaphore.NewWeighted(int64(n))}
}

func (c *Internal) Acquire(ctx context.Context) (Token, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &internalToken{sem: c.sem}, nil
}

func (c *Internal) Close() error { return nil }

type internalToken struct {
	sem *semaphore.Weighted
}

func (t *internalToken) Release() { t.sem.Release(1) }
