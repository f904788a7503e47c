package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrExpired          = errors.New("validity window has passed")
	ErrReplayDetected   = errors.New("nonce already consumed")
	ErrSignatureInvalid = errors.New("signature verification failed")
	ErrLimitExceeded    = errors.New("spending limit exceeded")
	ErrOverflow         = errors.New("amount arithmetic overflow")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrConflict         = errors.New("conflict: resource already exists")
	ErrInternal         = errors.New("internal server error")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap extracts the underlying wrapped error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
