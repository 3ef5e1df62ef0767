package cli

import (
	"errors"
	"fmt"

	"wikicache/internal/archive"
	"wikicache/internal/backup"
	"wikicache/internal/store"
	"wikicache/internal/wiki"
	"wikicache/internal/wikipedia"
)

// Exit codes for CLI commands.
const (
	ExitSuccess     = 0
	ExitFailure     = 1 // storage and other unexpected failures
	ExitUsage       = 2 // bad flags, arguments, config or restore input
	ExitNotFound    = 3 // the page does not exist
	ExitUnavailable = 4 // Wikipedia unreachable and nothing cached
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from err. Errors that are not
// ExitErrors come from cobra's own flag and argument parsing.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}

func usageError(format string, args ...any) *ExitError {
	return NewExitError(ExitUsage, fmt.Sprintf(format, args...))
}

// classify maps a service error onto an exit code.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	var (
		validation *backup.ValidationError
		network    *wikipedia.NetworkError
	)
	switch {
	case errors.Is(err, wiki.ErrInvalidTitle), errors.As(err, &validation):
		return WrapExitError(ExitUsage, "", err)
	case errors.Is(err, wiki.ErrArchiveDisabled):
		return WrapExitError(ExitUsage, "", fmt.Errorf("%w (set archive.path)", err))
	case errors.Is(err, wiki.ErrFeedDisabled):
		return WrapExitError(ExitUsage, "", fmt.Errorf("%w (set redis.addr)", err))
	case errors.Is(err, wikipedia.ErrNotFound):
		return WrapExitError(ExitNotFound, "", err)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, archive.ErrNotFound):
		return WrapExitError(ExitNotFound, "", err)
	case errors.As(err, &network):
		return WrapExitError(ExitUnavailable, "", err)
	}
	return WrapExitError(ExitFailure, "", err)
}
