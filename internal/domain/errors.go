package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidInput and related errors classify engine failures.
var (
	ErrInvalidID              = errors.New("invalid id")
	ErrInvalidInput           = errors.New("invalid input")
	ErrConfiguration          = errors.New("configuration error")
	ErrInvalidRule            = errors.New("invalid rule")
	ErrUnknownOperatingSystem = errors.New("unknown operating system")
)

// ConfigurationError reports a rule catalog without a fallback rule for one operating system.
type ConfigurationError struct {
	OperatingSystem OperatingSystem
}

// Error returns the error message.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no default rule for operating system %q", string(e.OperatingSystem))
}

// Unwrap exposes ErrConfiguration to errors.Is.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// InputError reports one offending record (or the whole batch when Index < 0).
type InputError struct {
	Index  int
	Reason string
}

// Error returns the error message.
func (e *InputError) Error() string {
	if e.Index < 0 {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input at period %d: %s", e.Index, e.Reason)
}

// Unwrap exposes ErrInvalidInput to errors.Is.
func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}
