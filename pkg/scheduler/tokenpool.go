// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scheduler

import (
	"context"
	"sync"

	"github.com/kraklabs/cargo-core/pkg/jobserver"
)

// tokenPool hands out the one implicit token every process starts
// with before ever touching the jobserver, per §4.5 rules 1-2: a
// second concurrent compiler must read a byte from the jobserver pipe
// first.
type tokenPool struct {
	js           jobserver.Client
	mu           sync.Mutex
	implicitFree bool
	initOnce     sync.Once
}

func (p *tokenPool) acquire(ctx context.Context) (release func(), err error) {
	p.initOnce.Do(func() { p.implicitFree = true })

	p.mu.Lock()
	if p.implicitFree {
		p.implicitFree = false
		p.mu.Unlock()
		return p.releaseImplicit, nil
	}
	p.mu.Unlock()

	tok, err := p.js.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return tok.Release, nil
}

func (p *tokenPool) releaseImplicit() {
	p.mu.Lock()
	p.implicitFree = true
	p.mu.Unlock()
}
