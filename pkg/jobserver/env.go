// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package jobserver

import "os"

// FromEnvironment inherits a jobserver from MAKEFLAGS if one was
// passed down, otherwise constructs an Internal one sized to
// fallbackJobs: the number of tokens beyond the caller's implicit one
// (the scheduler passes its job count minus one). jobserverInherited reports which branch was taken so
// callers can apply §4.5 rule 3 ("if -j was supplied and a jobserver
// was inherited, -j is ignored with a warning").
func FromEnvironment(fallbackJobs int) (client Client, jobserverInherited bool) {
	if r, w, ok := ParseMakeflagsAuth(os.Getenv("MAKEFLAGS")); ok {
		return NewInherited(r, w), true
	}
	return NewInternal(fallbackJobs), false
}
