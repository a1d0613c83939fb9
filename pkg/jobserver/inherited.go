// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package jobserver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Inherited is a jobserver backed by a pair of pipe file descriptors
// handed down by a parent make-compatible process via
// MAKEFLAGS=--jobserver-auth=<r>,<w>. Acquiring a token reads one byte
// from the read end; releasing writes one byte back, matching §6's
// "Reading one byte/decrementing the semaphore acquires a token;
// writing one byte/releasing the semaphore returns it."
type Inherited struct {
	readFD, writeFD int

	mu     sync.Mutex
	closed bool
}

// ParseMakeflagsAuth extracts the "<r>,<w>" file descriptor pair from
// a MAKEFLAGS value containing --jobserver-auth= or the older
// --jobserver-fds= spelling. ok is false if no jobserver auth token is
// present (e.g. plain -jN or no make-compatible parent at all).
func ParseMakeflagsAuth(makeflags string) (r, w int, ok bool) {
	for _, field := range strings.Fields(makeflags) {
		for _, prefix := range []string{"--jobserver-auth=", "--jobserver-fds="} {
			if strings.HasPrefix(field, prefix) {
				return parseFDPair(strings.TrimPrefix(field, prefix))
			}
		}
	}
	return 0, 0, false
}

func parseFDPair(spec string) (r, w int, ok bool) {
	// fifo:/path or named-semaphore forms (non-POSIX-pipe jobservers)
	// are not inherited by this implementation; only the "<r>,<w>" fd
	// form is supported.
	parts := strings.SplitN(spec, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	rv, err1 := strconv.Atoi(parts[0])
	wv, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return rv, wv, true
}

// NewInherited wraps an already-open read/write fd pair as a Client.
func NewInherited(readFD, writeFD int) *Inherited {
	return &Inherited{readFD: readFD, writeFD: writeFD}
}

// Acquire reads one byte from the jobserver pipe, blocking until a
// token is available or ctx is cancelled. Cancellation is checked
// before the blocking read; once the read has started it cannot be
// interrupted short of closing the fd, so callers should size ctx
// generously around jobserver waits.
func (c *Inherited) Acquire(ctx context.Context) (Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, 1)
	for {
		n, err := unix.Read(c.readFD, buf)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("jobserver: read token: %w", err)
		}
		if n == 1 {
			return &inheritedToken{client: c, b: buf[0]}, nil
		}
	}
}

// Close does not close the inherited fds: they belong to the parent
// process and remain valid for the lifetime of this process.
func (c *Inherited) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type inheritedToken struct {
	client *Inherited
	b      byte
}

// Release writes the same byte it read back to the jobserver's write
// end, returning the token to the shared pool.
func (t *inheritedToken) Release() {
	buf := [1]byte{t.b}
	for {
		_, err := unix.Write(t.client.writeFD, buf[:])
		if err == unix.EINTR {
			continue
		}
		return
	}
}
