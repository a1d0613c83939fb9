// Copyright 2025 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package contract validates manifest- and profile-derived values before
// they flow into the resolver or unit graph builder. It reports
// problems as ValidationResult values and constructs no errors itself.
package contract

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultMaxDependencies bounds the number of direct dependencies a
	// single package manifest may declare.
	DefaultMaxDependencies = 512

	// MaxFeatureNameBytes is the maximum length of a single feature name.
	MaxFeatureNameBytes = 128
)

// MaxDependencies returns the effective dependency-count limit.
// Controlled via env CARGO_CORE_MAX_DEPENDENCIES; falls back to
// DefaultMaxDependencies.
func MaxDependencies() int {
	if v := os.Getenv("CARGO_CORE_MAX_DEPENDENCIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxDependencies
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateDependencyCount checks a package's declared dependency count
// against MaxDependencies.
func ValidateDependencyCount(packageName string, count int) *ValidationResult {
	if count > MaxDependencies() {
		return &ValidationResult{
			OK:      false,
			Message: fmt.Sprintf("package %q declares %d dependencies, exceeding the limit of %d", packageName, count, MaxDependencies()),
		}
	}
	return &ValidationResult{OK: true}
}

// ValidateFeatureName checks a single feature name against
// MaxFeatureNameBytes and the reserved "dep:"/"/" separators used by
// weak and namespaced feature syntax.
func ValidateFeatureName(name string) *ValidationResult {
	if len(name) == 0 {
		return &ValidationResult{OK: false, Message: "feature name must not be empty"}
	}
	if len(name) > MaxFeatureNameBytes {
		return &ValidationResult{
			OK:      false,
			Message: fmt.Sprintf("feature name %q exceeds the %d byte limit", name, MaxFeatureNameBytes),
		}
	}
	if strings.HasPrefix(name, "dep:") || strings.Contains(name, "/") {
		return &ValidationResult{
			OK:      false,
			Message: fmt.Sprintf("feature name %q uses the reserved \"dep:\" or \"/\" syntax", name),
		}
	}
	return &ValidationResult{OK: true}
}

// ValidateProfile checks a resolved profile's codegen-units and
// opt-level fields for values the compiler contract (§6) accepts.
func ValidateProfile(optLevel string, codegenUnits int) *ValidationResult {
	switch optLevel {
	case "0", "1", "2", "3", "s", "z":
		// accepted opt-level values
	default:
		return &ValidationResult{OK: false, Message: fmt.Sprintf("invalid opt-level %q", optLevel)}
	}
	if codegenUnits < 0 {
		return &ValidationResult{OK: false, Message: "codegen-units must not be negative"}
	}
	return &ValidationResult{OK: true}
}
