package core

import (
	"errors"
	"fmt"
)

var (
	// ErrFileRead is returned when the source file cannot be opened or read.
	ErrFileRead = errors.New("file read error")

	// ErrParse is returned when the source is not well-formed delimited text.
	ErrParse = errors.New("parse error")

	// ErrEmptyData is returned when the source has no header line.
	ErrEmptyData = fmt.Errorf("%w: no columns to parse from file", ErrParse)

	// ErrInvalidTable is returned for tables holding values that cannot be
	// written. Saves fail on it immediately instead of retrying.
	ErrInvalidTable = errors.New("invalid table")

	// ErrSaveExhausted is returned once a save has used every attempt its
	// retry policy allows.
	ErrSaveExhausted = errors.New("save retries exhausted")
)

// SaveError reports a save that did not complete.
type SaveError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save %s failed after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}
