package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound      = errors.New("not found")
	ErrBatchFinished = errors.New("batch already finished")
	ErrInvalidRange  = errors.New("invalid time range")
)
