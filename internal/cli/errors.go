// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for all CLI commands.
//
// Handlers always return errors; only main decides how to show them and
// which exit code to use.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/thejudge22/nanochat-desktop/internal/api"
	"github.com/thejudge22/nanochat-desktop/internal/config"
	"github.com/thejudge22/nanochat-desktop/internal/storage"
	"github.com/thejudge22/nanochat-desktop/internal/store"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a missing or invalid configuration
	ExitConfigError = 3
	// ExitAuthError indicates the server rejected the API key
	ExitAuthError = 4
	// ExitNetworkError indicates the server could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a conversation, model or file was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates a reply did not complete in time
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

var (
	// ErrNotConfigured is returned by commands that need a server and key.
	ErrNotConfigured = errors.New("not configured: run 'nanochat config set server_url URL' and 'nanochat config set api_key KEY'")

	// ErrReplyIncomplete means polling ended before the reply had text.
	ErrReplyIncomplete = errors.New("reply not complete")
)

// ValidationError represents invalid user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Reason:  reason,
		Example: example,
	}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// ErrInvalidFormat creates an error for an argument in the wrong format.
func ErrInvalidFormat(field, value, expected string) error {
	return NewValidationErrorWithExample(field, value, "invalid format", expected)
}

// =============================================================================
// DISPLAY
// =============================================================================

// reportedError marks an error the command already printed.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Reported wraps err so DisplayError skips it but the exit code still
// reflects it.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// DisplayError writes err for a human, or as a JSON envelope in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	var rep *reportedError
	if err == nil || errors.As(err, &rep) {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse("", err).Print(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// HandleErrorAndExit displays err and exits with the code from GetExitCode.
// JSON errors go to stdout so scripts find them where they expect data.
func HandleErrorAndExit(err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayError(os.Stdout, err, true)
	} else {
		DisplayError(os.Stderr, err, false)
	}
	os.Exit(GetExitCode(err))
}

// GetExitCode maps an error to an exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var configErrs config.ValidateErrors
	if errors.Is(err, ErrNotConfigured) || errors.Is(err, api.ErrNotConfigured) || errors.As(err, &configErrs) {
		return ExitConfigError
	}

	if api.IsUnauthorized(err) {
		return ExitAuthError
	}

	if errors.Is(err, ErrReplyIncomplete) || errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeoutError
	}

	if api.IsNotFound(err) || api.StatusCode(err) == http.StatusNotFound ||
		errors.Is(err, store.ErrUnknownModel) || errors.Is(err, storage.ErrCacheMiss) ||
		errors.Is(err, os.ErrNotExist) {
		return ExitNotFoundError
	}

	var reqErr *api.RequestError
	if errors.As(err, &reqErr) && reqErr.Status == 0 {
		return ExitNetworkError
	}

	return ExitGeneralError
}

// errorType names the category of err for the JSON envelope.
func errorType(err error) string {
	switch GetExitCode(err) {
	case ExitUsageError:
		return "usage_error"
	case ExitConfigError:
		return "config_error"
	case ExitAuthError:
		return "auth_error"
	case ExitNetworkError:
		return "network_error"
	case ExitNotFoundError:
		return "not_found_error"
	case ExitTimeoutError:
		return "timeout_error"
	}
	return "generic_error"
}
