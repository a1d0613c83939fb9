// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package cachetracker

import (
	"database/sql"
	"fmt"
	"os"
	"time"
)

// Policy is the eviction policy passed to GC. MaxAge is one age cap
// applied to every kind alike; there is no separate age cap per kind.
// The size caps are per kind, with MaxGitBytes applied separately to
// git checkouts and to git databases. A zero value for a cap means "no
// limit".
type Policy struct {
	MaxAge        time.Duration
	MaxCrateBytes int64
	MaxSrcBytes   int64
	MaxGitBytes   int64
}

// Result summarizes one GC run for reporting and the S6 test scenario.
type Result struct {
	Removed      []Entry
	BytesFreed   int64
}

// RecordArtifact upserts kind/key with a known on-disk path and size,
// used right after a download/extraction/checkout completes so GC has
// something concrete to delete later. It also sets the entry's
// last_use to the current time, written immediately rather than
// buffered like MarkUsed.
func (t *Tracker) RecordArtifact(kind EntryKind, key, path string, size int64) error {
	now := time.Now().Unix()
	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("begin record artifact: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := touchEntry(tx, kind, key, now); err != nil {
		return err
	}
	if err := setArtifactPath(tx, kind, key, path, size); err != nil {
		return err
	}
	return tx.Commit()
}

func setArtifactPath(tx *sql.Tx, kind EntryKind, key, path string, size int64) error {
	switch kind {
	case KindRegistryCrate, KindRegistrySrc:
		_, name, version, err := splitRegistryKey(key)
		if err != nil {
			return err
		}
		var regID int64
		if err := tx.QueryRow(`SELECT id FROM registry_index WHERE name = ?`, registryNameFromKey(key)).Scan(&regID); err != nil {
			return fmt.Errorf("lookup registry for artifact path: %w", err)
		}
		table := "registry_crate"
		if kind == KindRegistrySrc {
			table = "registry_src"
		}
		_, err = tx.Exec(fmt.Sprintf(`UPDATE %s SET path = ?, size = ? WHERE registry_id = ? AND name = ? AND version = ?`, table),
			path, size, regID, name, version)
		return err
	case KindGitDB:
		_, err := tx.Exec(`UPDATE git_db SET path = ?, size = ? WHERE name = ?`, path, size, key)
		return err
	case KindGitCheckout:
		_, rev, err := splitCheckoutKey(key)
		if err != nil {
			return err
		}
		var dbID int64
		if err := tx.QueryRow(`SELECT id FROM git_db WHERE name = ?`, gitDBNameFromKey(key)).Scan(&dbID); err != nil {
			return fmt.Errorf("lookup git db for artifact path: %w", err)
		}
		_, err = tx.Exec(`UPDATE git_checkout SET path = ?, size = ? WHERE db_id = ? AND rev = ?`, path, size, dbID, rev)
		return err
	default:
		return fmt.Errorf("unknown cache entry kind %q", kind)
	}
}

// GC enumerates entries older than policy.MaxAge, or beyond each
// kind's size cap (oldest first once over budget), deletes their
// on-disk representation, then deletes the row. Deletion order is
// least-recently-used first within each kind, matching §4.6.
func (t *Tracker) GC(policy Policy) (*Result, error) {
	if err := t.Flush(); err != nil {
		return nil, fmt.Errorf("flush before gc: %w", err)
	}

	result := &Result{}
	cutoff := int64(0)
	if policy.MaxAge > 0 {
		cutoff = time.Now().Add(-policy.MaxAge).Unix()
	}

	specs := []struct {
		kind     EntryKind
		table    string
		maxBytes int64
	}{
		{KindRegistryCrate, "registry_crate", policy.MaxCrateBytes},
		{KindRegistrySrc, "registry_src", policy.MaxSrcBytes},
		{KindGitCheckout, "git_checkout", policy.MaxGitBytes},
		{KindGitDB, "git_db", policy.MaxGitBytes},
	}

	for _, spec := range specs {
		entries, err := t.listByLastUse(spec.table, spec.kind)
		if err != nil {
			return nil, err
		}

		// The size budget is filled newest-first so that, once over
		// budget, the least recently used entries are the ones evicted.
		evict := make([]bool, len(entries))
		var kept int64
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			expired := cutoff > 0 && e.LastUse < cutoff
			overBudget := spec.maxBytes > 0 && kept+e.Size > spec.maxBytes
			if !expired && !overBudget {
				kept += e.Size
				continue
			}
			if spec.kind == KindGitDB {
				live, err := t.hasLiveCheckouts(e.Key)
				if err != nil {
					return nil, err
				}
				if live {
					// A mirror still backing an unexpired checkout stays,
					// regardless of its own age or the size budget.
					kept += e.Size
					continue
				}
			}
			evict[i] = true
		}
		for i, e := range entries {
			if !evict[i] {
				continue
			}
			if err := t.deleteEntry(spec.table, spec.kind, e); err != nil {
				return nil, fmt.Errorf("delete %s entry %q: %w", spec.kind, e.Key, err)
			}
			result.Removed = append(result.Removed, e)
			result.BytesFreed += e.Size
		}
	}

	return result, nil
}

// listByLastUse returns every row in table, oldest (smallest last_use)
// first, as generic Entry values.
func (t *Tracker) listByLastUse(table string, kind EntryKind) ([]Entry, error) {
	var query string
	switch kind {
	case KindRegistryCrate, KindRegistrySrc:
		query = fmt.Sprintf(`
			SELECT ri.name, %[1]s.name, %[1]s.version, %[1]s.path, %[1]s.size, %[1]s.last_use
			FROM %[1]s JOIN registry_index ri ON ri.id = %[1]s.registry_id
			ORDER BY %[1]s.last_use ASC`, table)
	case KindGitDB:
		query = `SELECT name, '', '', path, size, last_use FROM git_db ORDER BY last_use ASC`
	case KindGitCheckout:
		query = `
			SELECT gd.name, git_checkout.rev, '', git_checkout.path, git_checkout.size, git_checkout.last_use
			FROM git_checkout JOIN git_db gd ON gd.id = git_checkout.db_id
			ORDER BY git_checkout.last_use ASC`
	default:
		return nil, fmt.Errorf("listByLastUse: unsupported kind %q", kind)
	}

	rows, err := t.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var a, b, c, path string
		var size, lastUse int64
		if err := rows.Scan(&a, &b, &c, &path, &size, &lastUse); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		var key string
		switch kind {
		case KindGitCheckout:
			key = GitCheckoutKey(a, b)
		case KindGitDB:
			key = a
		default:
			key = RegistryCrateKey(a, b, c)
		}
		out = append(out, Entry{Kind: kind, Key: key, Path: path, Size: size, LastUse: lastUse})
	}
	return out, rows.Err()
}

func (t *Tracker) deleteEntry(table string, kind EntryKind, e Entry) error {
	if e.Path != "" {
		if err := os.RemoveAll(e.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	tx, err := t.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	switch kind {
	case KindRegistryCrate, KindRegistrySrc:
		_, name, version, err := splitRegistryKey(e.Key)
		if err != nil {
			return err
		}
		var regID int64
		if err := tx.QueryRow(`SELECT id FROM registry_index WHERE name = ?`, registryNameFromKey(e.Key)).Scan(&regID); err != nil {
			return err
		}
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE registry_id = ? AND name = ? AND version = ?`, table), regID, name, version); err != nil {
			return err
		}
	case KindGitCheckout:
		_, rev, err := splitCheckoutKey(e.Key)
		if err != nil {
			return err
		}
		var dbID int64
		if err := tx.QueryRow(`SELECT id FROM git_db WHERE name = ?`, gitDBNameFromKey(e.Key)).Scan(&dbID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM git_checkout WHERE db_id = ? AND rev = ?`, dbID, rev); err != nil {
			return err
		}
	case KindGitDB:
		if _, err := tx.Exec(`DELETE FROM git_db WHERE name = ?`, e.Key); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// hasLiveCheckouts reports whether the named git database still backs
// at least one git_checkout row, the way a registry_crate row is never
// checked for this but a bare mirror can outlive its own eviction
// criteria as long as a checkout still points at it.
func (t *Tracker) hasLiveCheckouts(gitDBName string) (bool, error) {
	var count int
	err := t.db.QueryRow(`
		SELECT COUNT(*) FROM git_checkout
		JOIN git_db ON git_db.id = git_checkout.db_id
		WHERE git_db.name = ?`, gitDBName).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check live checkouts for %q: %w", gitDBName, err)
	}
	return count > 0, nil
}
