// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for cargo-core.
//
// It defines UserError, a type that carries structured error information
// including what went wrong, why it happened, and how to fix it, along
// with exit codes that map onto the error taxonomy of the resolver,
// source, scheduler, and cache subsystems.
//
// # Usage Example
//
//	err := errors.NewResolveError(
//	    "no matching version of \"serde\" satisfies the requirement",
//	    "root requires serde ^2.0.0, but only 1.0.210 is available",
//	    "relax the version requirement or vendor a matching release",
//	    underlyingErr,
//	)
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
//
// # Formatted Output
//
//	fmt.Fprint(os.Stderr, err.Format(false))
//	// Error: no matching version of "serde" satisfies the requirement
//	// Cause: root requires serde ^2.0.0, but only 1.0.210 is available
//	// Fix:   relax the version requirement or vendor a matching release
//
// For JSON output:
//
//	json.NewEncoder(os.Stderr).Encode(err.ToJSON())
//
// # Exit Codes
//
//   - ExitSuccess (0): successful execution
//   - ExitConfig (1): invalid manifest, config file, or CLI input
//   - ExitResolve (2): the resolver could not find a satisfying assignment
//   - ExitSource (3): a source failed to query or download a package
//   - ExitBuild (4): the compiler or a build script exited non-zero
//   - ExitFingerprint (7): an unrecoverable fingerprint/cache read failure
//   - ExitCache (5): the global cache tracker database failed
//   - ExitCancelled (8): the operation was interrupted by the user
//   - ExitInternal (10): internal errors (bugs, panics)
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for each error kind in the core's error taxonomy (see §7).
const (
	ExitSuccess     = 0
	ExitConfig      = 1
	ExitResolve     = 2
	ExitSource      = 3
	ExitBuild       = 4
	ExitCache       = 5
	ExitFingerprint = 7
	ExitCancelled   = 8
	ExitInternal    = 10
)

// Kind names the error taxonomy category a UserError belongs to.
type Kind string

// The error kinds named in the design's error handling section.
const (
	KindConfig      Kind = "config"
	KindResolve     Kind = "resolve"
	KindSource      Kind = "source"
	KindBuild       Kind = "build"
	KindFingerprint Kind = "fingerprint"
	KindCache       Kind = "cache"
	KindCancelled   Kind = "cancelled"
	KindInternal    Kind = "internal"
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: what went wrong (user-facing error description)
//   - Cause: why it happened (diagnostic information)
//   - Fix: how to fix it (actionable suggestion)
//
// UserError also carries a Kind (the error taxonomy category), an exit
// code for consistent CLI exit behavior, and optionally wraps an
// underlying error for error-chain compatibility.
type UserError struct {
	Kind     Kind
	Message  string
	Cause    string
	Fix      string
	ExitCode int
	Err      error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is/errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// NewConfigError creates an invalid-manifest/config/CLI-input error.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return &UserError{Kind: KindConfig, Message: msg, Cause: cause, Fix: fix, ExitCode: ExitConfig, Err: err}
}

// NewResolveError creates an error describing an unsatisfiable dependency
// graph. cause should carry the conflict trace produced by the resolver's
// conflict cache.
func NewResolveError(msg, cause, fix string, err error) *UserError {
	return &UserError{Kind: KindResolve, Message: msg, Cause: cause, Fix: fix, ExitCode: ExitResolve, Err: err}
}

// NewSourceError creates an error for a source query/download failure
// (not found, checksum mismatch, network transient/fatal, unsupported URL
// or operation).
func NewSourceError(msg, cause, fix string, err error) *UserError {
	return &UserError{Kind: KindSource, Message: msg, Cause: cause, Fix: fix, ExitCode: ExitSource, Err: err}
}

// NewBuildError creates an error for a non-zero compiler or build-script
// exit.
func NewBuildError(msg, cause, fix string, err error) *UserError {
	return &UserError{Kind: KindBuild, Message: msg, Cause: cause, Fix: fix, ExitCode: ExitBuild, Err: err}
}

// NewFingerprintError creates an error for an unreadable or corrupt
// fingerprint/dep-info file. Most fingerprint errors are recovered locally
// by treating the unit as dirty; this constructor is for the rare case
// where that recovery itself fails.
func NewFingerprintError(msg, cause, fix string, err error) *UserError {
	return &UserError{Kind: KindFingerprint, Message: msg, Cause: cause, Fix: fix, ExitCode: ExitFingerprint, Err: err}
}

// NewCacheError creates an error for a global cache tracker database
// failure that survived its one retry.
func NewCacheError(msg, cause, fix string, err error) *UserError {
	return &UserError{Kind: KindCache, Message: msg, Cause: cause, Fix: fix, ExitCode: ExitCache, Err: err}
}

// NewCancelledError creates the error returned when a build is
// interrupted by the user (SIGINT/Ctrl-C). It is never returned on a
// successful path.
func NewCancelledError(msg string) *UserError {
	return &UserError{Kind: KindCancelled, Message: msg, ExitCode: ExitCancelled}
}

// NewInternalError creates an error for unexpected internal failures
// (invariant violations, nil values that should be impossible).
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return &UserError{Kind: KindInternal, Message: msg, Cause: cause, Fix: fix, ExitCode: ExitInternal, Err: err}
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// Color output respects the NO_COLOR environment variable and can be
// explicitly disabled with the noColor parameter. Empty Cause or Fix
// fields are omitted.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
type ErrorJSON struct {
	Kind     string `json:"kind"`
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Kind:     string(e.Kind),
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code.
//
// For UserError it uses Format() or ToJSON() depending on jsonOutput.
// For any other error type it prints a simple message and exits with
// ExitInternal. A nil err makes FatalError return immediately; for any
// non-nil err it never returns.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
