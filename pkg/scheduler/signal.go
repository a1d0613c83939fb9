// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scheduler

import "os"

// interruptSignals lists the signals that trigger the cancellation
// path described in §5: the scheduler cancels the shared context and
// reports a typed cancellation error instead of partial success. Each
// running compiler.Invoke owns its own process group and reacts to
// that cancellation by SIGTERMing, then SIGKILLing, the group itself.
func interruptSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
