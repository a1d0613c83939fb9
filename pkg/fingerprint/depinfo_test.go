// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDepInfo_SimpleRule(t *testing.T) {
	data := []byte("target/debug/libfoo.rlib: src/lib.rs src/util.rs\n")
	got := ParseDepInfo(data)
	require.Equal(t, []string{"src/lib.rs", "src/util.rs"}, got)
}

func TestParseDepInfo_BackslashContinuation(t *testing.T) {
	data := []byte("target/debug/libfoo.rlib: src/lib.rs \\\n  src/util.rs \\\n  src/extra.rs\n")
	got := ParseDepInfo(data)
	require.ElementsMatch(t, []string{"src/lib.rs", "src/util.rs", "src/extra.rs"}, got)
}

func TestParseDepInfo_MissingTrailingNewline(t *testing.T) {
	data := []byte("target/debug/libfoo.rlib: src/lib.rs src/util.rs")
	got := ParseDepInfo(data)
	require.ElementsMatch(t, []string{"src/lib.rs", "src/util.rs"}, got)
}

func TestParseDepInfo_MissingFinalContinuationBackslash(t *testing.T) {
	// A truncated write can drop the final backslash entirely; the
	// parser must not choke on the dangling partial rule, it should
	// simply treat what is present as complete.
	data := []byte("target/debug/libfoo.rlib: src/lib.rs \\\n  src/util.rs")
	got := ParseDepInfo(data)
	require.ElementsMatch(t, []string{"src/lib.rs", "src/util.rs"}, got)
}

func TestParseDepInfo_MultipleRulesDeduped(t *testing.T) {
	data := []byte("a.d: src/lib.rs\nb.d: src/lib.rs src/other.rs\n")
	got := ParseDepInfo(data)
	require.ElementsMatch(t, []string{"src/lib.rs", "src/other.rs"}, got)
}

func TestParseDepInfo_EscapedSpaceInPath(t *testing.T) {
	data := []byte("out.d: src/has\\ space.rs src/plain.rs\n")
	got := ParseDepInfo(data)
	require.ElementsMatch(t, []string{"src/has space.rs", "src/plain.rs"}, got)
}
