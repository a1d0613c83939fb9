// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package manifest

import "github.com/kraklabs/cargo-core/pkg/pkgid"

// builtinProfile returns cargo's hard-coded base for name before any
// [profile.*] override from the manifest is applied.
func builtinProfile(name string) pkgid.Profile {
	switch name {
	case "release":
		return pkgid.Profile{
			Name:         "release",
			OptLevel:     "3",
			Debug:        false,
			LTO:          pkgid.LTOOff,
			CodegenUnits: 16,
			Incremental:  false,
			Panic:        "unwind",
			Strip:        "none",
		}
	default:
		return pkgid.Profile{
			Name:           "dev",
			OptLevel:       "0",
			Debug:          true,
			LTO:            pkgid.LTOOff,
			CodegenUnits:   256,
			Incremental:    true,
			Panic:          "unwind",
			OverflowChecks: true,
			Strip:          "none",
		}
	}
}

// ResolveProfile flattens [profile.name] overrides from f onto the
// built-in base for name, the way cargo follows a profile's implicit
// inheritance from "dev" or "release" down to one concrete Profile.
func ResolveProfile(f File, name string) pkgid.Profile {
	p := builtinProfile(name)
	spec, ok := f.Profile[name]
	if !ok {
		return p
	}
	if spec.OptLevel != "" {
		p.OptLevel = spec.OptLevel
	}
	if spec.Debug != nil {
		p.Debug = *spec.Debug
	}
	switch spec.LTO {
	case "thin":
		p.LTO = pkgid.LTOThin
	case "fat", "true":
		p.LTO = pkgid.LTOFat
	case "false", "off":
		p.LTO = pkgid.LTOOff
	}
	if spec.CodegenUnits != 0 {
		p.CodegenUnits = spec.CodegenUnits
	}
	if spec.Incremental != nil {
		p.Incremental = *spec.Incremental
	}
	if spec.Panic != "" {
		p.Panic = spec.Panic
	}
	if spec.OverflowChecks != nil {
		p.OverflowChecks = *spec.OverflowChecks
	}
	return p
}
