// Package errors provides error handling for reportcopilot.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	if err := step(); err != nil {
//	    return errors.Wrap(err, "writer step failed")
//	}
//
//	return errors.WithHint(err, "check llm.api_key in am.toml")
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"fmt"
	"strings"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapOnce     = crdb.UnwrapOnce
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors shared across packages.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrUnknownTemplate is returned by the template registry for unregistered keys
	ErrUnknownTemplate = New("unknown template")

	// ErrRateLimited indicates a client exceeded its submission window
	ErrRateLimited = New("rate limit exceeded")

	// ErrBudgetExceeded indicates configured spend limits block new work
	ErrBudgetExceeded = New("budget exceeded")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, fmt.Sprintf(format, args...))
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// wrapperTypes are the context-only layers added by this package and by
// fmt.Errorf("%w"). TypeName looks through them to the cause they decorate.
var wrapperTypes = map[string]bool{
	"withPrefix":           true,
	"withStack":            true,
	"withNewMessage":       true,
	"withHint":             true,
	"withDetail":           true,
	"withSecondaryError":   true,
	"withDomain":           true,
	"withSafeDetails":      true,
	"withTelemetry":        true,
	"withIssueLink":        true,
	"withContext":          true,
	"withAssertionFailure": true,
	"opaqueWrapper":        true,
	"wrapError":            true,
}

// TypeName returns the Go type of the first meaningful cause of err, without
// the pointer marker and package path ("*fs.PathError" -> "PathError").
// Wrapping layers are skipped; a typed error stops the walk even when it
// wraps something else itself.
func TypeName(err error) string {
	if err == nil {
		return ""
	}
	cur := err
	name := shortTypeName(cur)
	for wrapperTypes[name] {
		next := UnwrapOnce(cur)
		if next == nil {
			return "Error"
		}
		cur = next
		name = shortTypeName(cur)
	}
	switch name {
	case "leafError", "errorString", "opaqueLeaf", "wrapErrors":
		// plain messages from New/Newf/errors.New
		return "Error"
	}
	return name
}

func shortTypeName(err error) string {
	name := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Describe renders err as "<TypeName>: <message>", the form step failures
// carry in their detail field.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	return TypeName(err) + ": " + err.Error()
}
