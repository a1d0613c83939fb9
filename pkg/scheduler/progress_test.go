// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProgressConfig_DisabledWhenQuiet(t *testing.T) {
	cfg := NewProgressConfig(true, false)
	require.False(t, cfg.Enabled)
}

func TestNewUnitProgressBar_NilWhenDisabled(t *testing.T) {
	cfg := ProgressConfig{Enabled: false}
	require.Nil(t, NewUnitProgressBar(cfg, 10))
}

func TestNewFetchSpinner_NilWhenDisabled(t *testing.T) {
	cfg := ProgressConfig{Enabled: false}
	require.Nil(t, NewFetchSpinner(cfg, "fetching"))
}
