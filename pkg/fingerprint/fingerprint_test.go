// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func baseInputs() Inputs {
	return Inputs{
		CompilerVersion: "rustc 1.80.0",
		TargetTriple:    "x86_64-unknown-linux-gnu",
		ProfileHash:     "profile-dev-abc123",
		Sources: []SourceFile{
			{Path: "src/lib.rs", MTime: 1700000000, Size: 512},
			{Path: "src/util.rs", MTime: 1700000001, Size: 128},
		},
		RustflagsHash:   "rustflags-none",
		DepFingerprints: []string{"dep-a-digest", "dep-b-digest"},
	}
}

func TestCompute_DeterministicAcrossFieldOrder(t *testing.T) {
	in1 := baseInputs()
	in2 := baseInputs()
	// Shuffle slice order; Compute must sort internally before hashing.
	in2.Sources[0], in2.Sources[1] = in2.Sources[1], in2.Sources[0]
	in2.DepFingerprints[0], in2.DepFingerprints[1] = in2.DepFingerprints[1], in2.DepFingerprints[0]

	fp1 := Compute(in1)
	fp2 := Compute(in2)
	require.Equal(t, fp1.Digest, fp2.Digest)
}

func TestCompute_DiffersWhenASourceChanges(t *testing.T) {
	in1 := baseInputs()
	in2 := baseInputs()
	in2.Sources[0].MTime++

	require.NotEqual(t, Compute(in1).Digest, Compute(in2).Digest)
}

func TestCompute_DiffersWhenCompilerVersionChanges(t *testing.T) {
	in1 := baseInputs()
	in2 := baseInputs()
	in2.CompilerVersion = "rustc 1.81.0"

	require.NotEqual(t, Compute(in1).Digest, Compute(in2).Digest)
}

func TestNormalizeSourcePath_StripsBasedir(t *testing.T) {
	got := NormalizeSourcePath("/home/user/proj", "/home/user/proj/src/lib.rs")
	require.Equal(t, "src/lib.rs", got)
}

func TestNormalizeSourcePath_NoBasedirMatch(t *testing.T) {
	got := NormalizeSourcePath("/other/root", "./src/lib.rs")
	require.Equal(t, "src/lib.rs", got)
}

func TestBuildKey_StableForSameDistinguisher(t *testing.T) {
	k1 := BuildKey("left-pad", "lib|host|build|dev|")
	k2 := BuildKey("left-pad", "lib|host|build|dev|")
	require.Equal(t, k1, k2)

	k3 := BuildKey("left-pad", "lib|host|test|dev|")
	require.NotEqual(t, k1, k3)
}
