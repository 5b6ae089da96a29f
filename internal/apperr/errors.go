// Package apperr defines the error values shared by the services and adapters.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	ErrConcurrentModification = errors.New("concurrent modification")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrUnknownIO              = errors.New("unknown i/o error")
	ErrLegacyFormat           = errors.New("legacy format")
)

// StoreError is a storage failure rewritten for callers. Message is safe to
// show to a user; Err keeps the raw backend error for logs and errors.Is.
type StoreError struct {
	Kind    error
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the error's kind sentinel.
func (e *StoreError) Is(target error) bool {
	return target == e.Kind
}

// Retryable reports whether the whole read-modify-write may be retried.
func (e *StoreError) Retryable() bool {
	return e.Kind == ErrConcurrentModification
}

// LegacyFormatError is returned when the persisted document is not in the
// current format. Shape names what was detected on disk.
type LegacyFormatError struct {
	Shape   string
	Version string
}

func (e *LegacyFormatError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("legacy data format detected (%s, version %q); run the migrate command", e.Shape, e.Version)
	}
	return fmt.Sprintf("legacy data format detected (%s); run the migrate command", e.Shape)
}

func (e *LegacyFormatError) Is(target error) bool {
	return target == ErrLegacyFormat
}

// NotFoundf returns an error wrapping ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Invalidf returns an error wrapping ErrInvalidInput with context.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}
