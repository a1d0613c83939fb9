// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestInvoke_ParsesJSONDiagnosticsFromStderr(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "rustc-stub.sh", `echo '{"message":"unused variable","level":"warning"}' 1>&2
`)

	result, err := Invoke(context.Background(), script, nil, os.Environ(), dir, "")
	require.NoError(t, err)
	require.Len(t, result.Diagnostics, 1)
	require.Equal(t, "warning", result.Diagnostics[0].Level)
}

func TestInvoke_ReportsNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "rustc-stub.sh", "exit 1\n")

	_, err := Invoke(context.Background(), script, nil, os.Environ(), dir, "")
	require.Error(t, err)
}

func TestInvoke_ReadsDepInfoFile(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "rustc-stub.sh", "exit 0\n")

	depInfoPath := filepath.Join(dir, "widget.d")
	require.NoError(t, os.WriteFile(depInfoPath, []byte("widget: src/lib.rs src/util.rs\n"), 0o644))

	result, err := Invoke(context.Background(), script, nil, os.Environ(), dir, depInfoPath)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"src/lib.rs", "src/util.rs"}, result.DepInfo)
}
