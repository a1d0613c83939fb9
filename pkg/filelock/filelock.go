// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package filelock implements the two-mode (Shared/DownloadExclusive)
// file lock over the package-cache and target directories described
// in §5: many readers may hold Shared concurrently, a single writer
// holds DownloadExclusive, and converting from Shared to
// DownloadExclusive requires release-and-reacquire — no lock upgrade.
//
// The flock-plus-PID-liveness discipline is grounded on the teacher's
// IndexQueue lock (cmd/cie/queue.go): TryAcquireLock/WaitForLock/
// ReleaseLock/GetLockInfo/IsLockStale, generalized from a single
// exclusive queue lock into a shared/exclusive pair.
package filelock

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// Mode is the lock discipline requested.
type Mode int

const (
	// Shared allows any number of concurrent holders; used by readers
	// (e.g. Source.query/download) that must not race an exclusive
	// writer but do not conflict with each other.
	Shared Mode = iota
	// DownloadExclusive allows exactly one holder; used by writers of
	// the registry index cache and git database/checkout trees.
	DownloadExclusive
)

// Info describes the current holder of an exclusive lock, persisted
// alongside the lock file the same way the teacher's IndexQueue writes
// "pid timestamp" into its lock file.
type Info struct {
	PID       int
	StartedAt time.Time
}

// Lock is an acquired file lock. Call Release to give it up; Release
// is safe to call more than once.
type Lock struct {
	path string
	mode Mode
	file *os.File
}

// Path is the on-disk lock file this Lock was acquired against.
func (l *Lock) Path() string { return l.path }

// Mode reports which discipline this Lock was acquired under.
func (l *Lock) Mode() Mode { return l.mode }

// TryAcquire attempts to acquire path under mode without blocking. ok
// is false (with a nil *Lock and nil error) if another process
// currently holds an incompatible lock.
func TryAcquire(path string, mode Mode) (lock *Lock, ok bool, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open lock file %s: %w", path, err)
	}

	flockMode := syscall.LOCK_SH
	if mode == DownloadExclusive {
		flockMode = syscall.LOCK_EX
	}

	if err := syscall.Flock(int(f.Fd()), flockMode|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("flock %s: %w", path, err)
	}

	if mode == DownloadExclusive {
		if err := writeInfo(f); err != nil {
			_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
			_ = f.Close()
			return nil, false, err
		}
	}

	return &Lock{path: path, mode: mode, file: f}, true, nil
}

// Acquire waits up to timeout for path to become available under mode,
// polling the same way the teacher's WaitForLock does. A timeout of 0
// waits indefinitely.
func Acquire(path string, mode Mode, timeout time.Duration) (*Lock, error) {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		lock, ok, err := TryAcquire(path, mode)
		if err != nil {
			return nil, err
		}
		if ok {
			return lock, nil
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return nil, fmt.Errorf("timed out waiting for lock %s", path)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// Release unlocks and closes the underlying file. Safe to call on a
// nil Lock or call more than once.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}

// Upgrade releases a Shared lock and reacquires path under
// DownloadExclusive. There is no in-place upgrade (§5): this always
// does release-then-reacquire, so a writer racing this call can win
// the gap between the two.
func (l *Lock) Upgrade(timeout time.Duration) (*Lock, error) {
	if l.mode != Shared {
		return nil, fmt.Errorf("Upgrade is only valid from Shared (got %v)", l.mode)
	}
	path := l.path
	l.Release()
	return Acquire(path, DownloadExclusive, timeout)
}

func writeInfo(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d %d\n", os.Getpid(), time.Now().Unix()); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

// ReadInfo reads the PID/start-time of whoever currently holds (or
// last held) path's exclusive lock. It does not itself acquire the
// lock, so the result may already be stale.
func ReadInfo(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var pid int
	var ts int64
	if _, err := fmt.Sscanf(string(data), "%d %d", &pid, &ts); err != nil {
		return nil, fmt.Errorf("parse lock info: %w", err)
	}
	return &Info{PID: pid, StartedAt: time.Unix(ts, 0)}, nil
}

// IsStale reports whether path's recorded exclusive-lock holder no
// longer exists. It does not acquire the lock; callers use this to
// decide whether a wait is worth retrying or the lock file can be
// treated as abandoned.
func IsStale(path string) bool {
	info, err := ReadInfo(path)
	if err != nil || info == nil {
		return false
	}
	proc, err := os.FindProcess(info.PID)
	if err != nil {
		return true
	}
	return proc.Signal(syscall.Signal(0)) != nil
}
