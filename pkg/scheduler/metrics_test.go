// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RecordUnitStart()
		m.RecordUnitFresh()
		m.RecordUnitCompiled()
		m.RecordUnitFailed()
		m.RecordUnitDuration(time.Second)
		m.RecordBacktrack()
		m.RecordGCReclaimed(1024)
	})
}

func TestMetrics_RecordsWithoutPanicking(t *testing.T) {
	m := NewMetrics()
	require.NotPanics(t, func() {
		m.RecordUnitStart()
		m.RecordUnitCompiled()
		m.RecordGCReclaimed(512)
	})
}
