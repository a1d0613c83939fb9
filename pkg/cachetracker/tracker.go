// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package cachetracker implements the global cache tracker (§4.6,
// §6): a small embedded SQL database recording one row per downloaded
// crate file, extracted source directory, git database, and git
// checkout, keyed by kind and a string key, with a last-use timestamp
// used to drive bounded garbage collection.
//
// The Tracker is a database/sql-backed relational store (its own
// methods, not a generic query interface), matching §4.6's "small
// embedded SQL database" requirement with github.com/mattn/go-sqlite3
// as the driver.
package cachetracker

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// schemaVersion is the current user_version this package expects. A
// database opened at an older version is migrated forward under an
// exclusive transaction before use.
const schemaVersion = 1

// EntryKind distinguishes what a CacheEntry row tracks.
type EntryKind string

const (
	KindRegistryCrate EntryKind = "registry-crate"
	KindRegistrySrc   EntryKind = "registry-src"
	KindGitDB         EntryKind = "git-db"
	KindGitCheckout   EntryKind = "git-checkout"
)

// Entry is one row of the cache tracker: a single cached artifact of a
// given kind, its encoded key, its size on disk, and when it was last
// used.
type Entry struct {
	Kind     EntryKind
	Key      string
	Path     string
	Size     int64
	LastUse  int64
}

// Tracker wraps the global cache tracker database connection. All
// mutations are scoped acquisitions with guaranteed release on every
// exit path (invariant §3.6): no CacheEntry is evicted while a caller
// holds a Tracker reference and has not called GC concurrently, since
// sqlite's own transaction semantics serialize writers.
type Tracker struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]pendingUse // buffered mark_used, flushed as one transaction
}

type pendingUse struct {
	kind EntryKind
	key  string
}

// Open opens (creating if absent) the cache tracker database at path
// and migrates it forward to schemaVersion.
func Open(path string, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache tracker db: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers from one process

	t := &Tracker{db: db, logger: logger, pending: make(map[string]pendingUse)}
	if err := t.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return t, nil
}

// Close flushes any deferred last-use updates and releases the
// database connection.
func (t *Tracker) Close() error {
	if err := t.Flush(); err != nil {
		t.logger.Warn("cachetracker.close.flush_error", "err", err)
	}
	return t.db.Close()
}

func (t *Tracker) migrate() error {
	var current int
	if err := t.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT)`,
		`CREATE TABLE IF NOT EXISTS registry_index (
			id INTEGER PRIMARY KEY,
			name TEXT UNIQUE,
			last_use INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS registry_crate (
			registry_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			path TEXT NOT NULL DEFAULT '',
			last_use INTEGER NOT NULL,
			PRIMARY KEY (registry_id, name, version)
		)`,
		`CREATE TABLE IF NOT EXISTS registry_src (
			registry_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			path TEXT NOT NULL DEFAULT '',
			last_use INTEGER NOT NULL,
			PRIMARY KEY (registry_id, name, version)
		)`,
		`CREATE TABLE IF NOT EXISTS git_db (
			id INTEGER PRIMARY KEY,
			name TEXT UNIQUE,
			path TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			last_use INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS git_checkout (
			db_id INTEGER NOT NULL,
			rev TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			last_use INTEGER NOT NULL,
			PRIMARY KEY (db_id, rev)
		)`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration statement failed: %w", err)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	return tx.Commit()
}

// MarkUsed records that the entry identified by (kind, key) was used
// just now. The update is buffered in memory (DeferredGlobalLastUse)
// and only written to disk on the next Flush or Close, avoiding write
// amplification when the same hot entries are touched repeatedly
// within one session.
func (t *Tracker) MarkUsed(kind EntryKind, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[string(kind)+"\x1f"+key] = pendingUse{kind: kind, key: key}
}

// Flush writes every buffered MarkUsed call to disk in a single
// transaction and clears the buffer. It is a no-op if nothing is
// pending.
func (t *Tracker) Flush() error {
	t.mu.Lock()
	batch := t.pending
	t.pending = make(map[string]pendingUse)
	t.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("begin flush: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	for _, use := range batch {
		if err := touchEntry(tx, use.kind, use.key, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func touchEntry(tx *sql.Tx, kind EntryKind, key string, now int64) error {
	switch kind {
	case KindRegistryCrate, KindRegistrySrc:
		_, name, version, err := splitRegistryKey(key)
		if err != nil {
			return err
		}
		registryID, err := getOrCreateRegistryID(tx, registryNameFromKey(key), now)
		if err != nil {
			return err
		}
		table := "registry_crate"
		if kind == KindRegistrySrc {
			table = "registry_src"
		}
		_, err = tx.Exec(fmt.Sprintf(
			`INSERT INTO %s (registry_id, name, version, last_use) VALUES (?, ?, ?, ?)
			 ON CONFLICT(registry_id, name, version) DO UPDATE SET last_use = excluded.last_use`, table),
			registryID, name, version, now)
		return err
	case KindGitDB:
		_, err := getOrCreateGitDBID(tx, key, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE git_db SET last_use = ? WHERE name = ?`, now, key)
		return err
	case KindGitCheckout:
		_, rev, err := splitCheckoutKey(key)
		if err != nil {
			return err
		}
		dbID, err := getOrCreateGitDBID(tx, gitDBNameFromKey(key), now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO git_checkout (db_id, rev, last_use) VALUES (?, ?, ?)
			 ON CONFLICT(db_id, rev) DO UPDATE SET last_use = excluded.last_use`,
			dbID, rev, now)
		return err
	default:
		return fmt.Errorf("unknown cache entry kind %q", kind)
	}
}
