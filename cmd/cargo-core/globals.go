// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

// GlobalFlags carries the flags every subcommand respects, parsed by
// main before dispatch and threaded through to each runXxx function.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
	Dir     string // project directory; defaults to the working directory
}
