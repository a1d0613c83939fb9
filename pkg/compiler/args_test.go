// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
	"github.com/kraklabs/cargo-core/pkg/unitgraph"
)

func TestBuildArgs_IncludesCrateNameAndType(t *testing.T) {
	u := &unitgraph.Unit{
		Kind:    pkgid.Host(),
		Profile: pkgid.Profile{Name: "release", OptLevel: "3", CodegenUnits: 16},
	}
	target := pkgid.Target{Name: "my-widget", SrcPath: "src/lib.rs", CrateTypes: []pkgid.CrateType{pkgid.CrateTypeRlib}, Edition: "2021"}

	args := BuildArgs(u, target, nil, nil, "/tmp/out", []string{"dep-info", "link"})

	require.Contains(t, args, "--crate-name")
	require.Contains(t, args, "my_widget")
	require.Contains(t, args, "--crate-type")
	require.Contains(t, args, "rlib")
	require.Contains(t, args, "--edition")
	require.Contains(t, args, "2021")
}

func TestBuildArgs_AppendsTargetTripleForNonHost(t *testing.T) {
	u := &unitgraph.Unit{Kind: pkgid.ForTarget("x86_64-unknown-linux-gnu"), Profile: pkgid.Profile{}}
	target := pkgid.Target{Name: "widget", SrcPath: "src/lib.rs"}

	args := BuildArgs(u, target, nil, nil, "/tmp/out", nil)
	require.Contains(t, args, "--target")
	require.Contains(t, args, "x86_64-unknown-linux-gnu")
}

func TestBuildArgs_OmitsTargetTripleForHost(t *testing.T) {
	u := &unitgraph.Unit{Kind: pkgid.Host(), Profile: pkgid.Profile{}}
	target := pkgid.Target{Name: "widget", SrcPath: "src/lib.rs"}

	args := BuildArgs(u, target, nil, nil, "/tmp/out", nil)
	require.NotContains(t, args, "--target")
}

func TestBuildArgs_SortsExternsByName(t *testing.T) {
	u := &unitgraph.Unit{Kind: pkgid.Host(), Profile: pkgid.Profile{}}
	target := pkgid.Target{Name: "widget", SrcPath: "src/lib.rs"}
	externs := []Extern{{Name: "zeta", Path: "/a"}, {Name: "alpha", Path: "/b"}}

	args := BuildArgs(u, target, nil, externs, "/tmp/out", nil)

	alphaIdx, zetaIdx := -1, -1
	for i, a := range args {
		if a == "alpha=/b" {
			alphaIdx = i
		}
		if a == "zeta=/a" {
			zetaIdx = i
		}
	}
	require.True(t, alphaIdx >= 0 && zetaIdx >= 0 && alphaIdx < zetaIdx)
}

func TestBuildArgs_OnlyActiveFeaturesEmitCfg(t *testing.T) {
	u := &unitgraph.Unit{
		Kind:     pkgid.Host(),
		Profile:  pkgid.Profile{},
		Features: map[string]bool{"on": true, "off": false},
	}
	target := pkgid.Target{Name: "widget", SrcPath: "src/lib.rs"}

	args := BuildArgs(u, target, nil, nil, "/tmp/out", nil)
	joined := ""
	for _, a := range args {
		joined += a + " "
	}
	require.Contains(t, joined, `feature="on"`)
	require.NotContains(t, joined, `feature="off"`)
}

func TestCrateName_ReplacesDashesWithUnderscores(t *testing.T) {
	require.Equal(t, "my_widget_thing", crateName("my-widget-thing"))
}
