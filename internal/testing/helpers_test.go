// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

func TestSetupCargoHome(t *testing.T) {
	home := SetupCargoHome(t)
	require.NotNil(t, home)
	require.DirExists(t, home.RegistryDir)
	require.DirExists(t, home.GitDir)
	require.NotNil(t, home.Tracker)
}

func TestSetupCargoHome_Isolation(t *testing.T) {
	home1 := SetupCargoHome(t)
	home2 := SetupCargoHome(t)
	assert.NotEqual(t, home1.Root, home2.Root, "each call must get its own root")
}

func TestNewSummary(t *testing.T) {
	src := RegistrySourceID("https://example.invalid/index")
	s := NewSummary(t, "left-pad", "1.2.0", src)
	assert.Equal(t, "left-pad", s.PackageId.Name)
	assert.Equal(t, "1.2.0", s.PackageId.Version.String())
	assert.Empty(t, s.Dependencies)
}

func TestWithDependency(t *testing.T) {
	src := RegistrySourceID("https://example.invalid/index")
	dep := NewDependency(t, "left-pad", ">=1.0.0", src)
	app := WithDependency(NewSummary(t, "app", "0.1.0", src), dep)

	require.Len(t, app.Dependencies, 1)
	assert.Equal(t, "left-pad", app.Dependencies[0].Name)
	assert.Equal(t, pkgid.KindNormal, app.Dependencies[0].Kind)
	assert.True(t, app.Dependencies[0].Requirement(MustVersion(t, "1.5.0")))
	assert.False(t, app.Dependencies[0].Requirement(MustVersion(t, "0.9.0")))
}

func TestWithDependency_DoesNotMutateOriginal(t *testing.T) {
	src := RegistrySourceID("https://example.invalid/index")
	base := NewSummary(t, "app", "0.1.0", src)
	_ = WithDependency(base, NewDependency(t, "a", ">=1.0.0", src))
	assert.Empty(t, base.Dependencies, "WithDependency must not mutate its input")
}
