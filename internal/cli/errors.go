// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jeranaias/schoolhub-tui/internal/api"
	"github.com/jeranaias/schoolhub-tui/internal/menu"
	"github.com/jeranaias/schoolhub-tui/internal/session"
	"github.com/jeranaias/schoolhub-tui/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0
	// ExitGeneralError indicates an unclassified failure.
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments.
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error.
	ExitConfigError = 3
	// ExitAuthError indicates a missing, rejected or expired session.
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached or failed.
	ExitNetworkError = 5
	// ExitNotFoundError indicates a requested resource does not exist.
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out.
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a malformed command line.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// Usagef builds a UsageError.
func Usagef(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ConfigError wraps a failure to load or apply configuration.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CommandError adds the failing command and action to an error.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ErrTTYRequired is returned when a prompt is needed but stdin is not a terminal.
var ErrTTYRequired = errors.New("an interactive terminal is required")

// =============================================================================
// CLASSIFICATION
// =============================================================================

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfgErr *ConfigError
	var netErr net.Error
	switch {
	case errors.As(err, &usage), errors.Is(err, ErrTTYRequired):
		return ExitUsageError
	case errors.As(err, &cfgErr), errors.Is(err, menu.ErrInvalidMenu):
		return ExitConfigError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.Is(err, api.ErrUnauthorized),
		errors.Is(err, session.ErrNoSession),
		errors.Is(err, session.ErrSessionExpired),
		errors.Is(err, session.ErrMissingCredentials):
		return ExitAuthError
	case errors.Is(err, api.ErrServer), errors.Is(err, api.ErrNotConfigured), errors.As(err, &netErr):
		if netErr != nil && netErr.Timeout() {
			return ExitTimeoutError
		}
		return ExitNetworkError
	case errors.Is(err, storage.ErrNotFound):
		return ExitNotFoundError
	}
	return ExitGeneralError
}

// userMessage renders err for people, hiding wrapping noise for the common
// session errors.
func userMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return "not signed in (run 'schoolhub login')"
	case errors.Is(err, session.ErrSessionExpired):
		return "session expired; sign in again with 'schoolhub login'"
	case errors.Is(err, api.ErrUnauthorized):
		return "invalid username or password"
	}
	return err.Error()
}
