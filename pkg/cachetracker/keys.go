// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package cachetracker

import (
	"database/sql"
	"fmt"
	"strings"
)

const keySep = "\x1f"

// RegistryCrateKey encodes the MarkUsed key for a downloaded .crate
// file of name@version served by the named registry.
func RegistryCrateKey(registry, name, version string) string {
	return strings.Join([]string{registry, name, version}, keySep)
}

// RegistrySrcKey encodes the MarkUsed key for an extracted source
// directory of name@version served by the named registry.
func RegistrySrcKey(registry, name, version string) string {
	return strings.Join([]string{registry, name, version}, keySep)
}

// GitCheckoutKey encodes the MarkUsed key for a checked-out working
// tree at rev within the named git database.
func GitCheckoutKey(gitDBName, rev string) string {
	return strings.Join([]string{gitDBName, rev}, keySep)
}

func splitRegistryKey(key string) (registryID int64, name, version string, err error) {
	parts := strings.SplitN(key, keySep, 3)
	if len(parts) != 3 {
		return 0, "", "", fmt.Errorf("malformed registry cache key %q", key)
	}
	return 0, parts[1], parts[2], nil // caller resolves registryID via registryNameFromKey + getOrCreateRegistryID
}

func registryNameFromKey(key string) string {
	parts := strings.SplitN(key, keySep, 2)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func splitCheckoutKey(key string) (dbID int64, rev string, err error) {
	parts := strings.SplitN(key, keySep, 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("malformed git checkout cache key %q", key)
	}
	return 0, parts[1], nil // caller resolves dbID via parts[0] + getOrCreateGitDBID
}

func gitDBNameFromKey(key string) string {
	parts := strings.SplitN(key, keySep, 2)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// getOrCreateRegistryID returns the registry_index row id for name,
// inserting a fresh row with last_use = now if none exists yet.
func getOrCreateRegistryID(tx *sql.Tx, name string, now int64) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM registry_index WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup registry index %q: %w", name, err)
	}
	res, err := tx.Exec(`INSERT INTO registry_index (name, last_use) VALUES (?, ?)`, name, now)
	if err != nil {
		return 0, fmt.Errorf("create registry index %q: %w", name, err)
	}
	return res.LastInsertId()
}

// getOrCreateGitDBID returns the git_db row id for name, inserting a
// fresh row with last_use = now if none exists yet.
func getOrCreateGitDBID(tx *sql.Tx, name string, now int64) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM git_db WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup git db %q: %w", name, err)
	}
	res, err := tx.Exec(`INSERT INTO git_db (name, last_use) VALUES (?, ?)`, name, now)
	if err != nil {
		return 0, fmt.Errorf("create git db %q: %w", name, err)
	}
	return res.LastInsertId()
}
