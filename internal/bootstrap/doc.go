// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package bootstrap handles CARGO_HOME initialization and layered
// configuration loading.
//
// It creates the on-disk layout the rest of the core depends on — the
// registry index cache, the git database/checkout trees, and the
// global cache tracker (pkg/cachetracker) database — and assembles the
// layered configuration chain: built-in defaults, $CARGO_HOME/config.toml,
// CARGO_* environment variables, and finally CLI flags (applied by the
// caller after Load returns).
//
// # Quick start
//
//	home, err := bootstrap.Init(cargoHome, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer home.Close()
//
//	cfg, err := bootstrap.Load(cargoHome, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Idempotency
//
// Init is idempotent: calling it multiple times against the same root
// is safe and never corrupts an existing registry cache, git database,
// or cache tracker.
package bootstrap
