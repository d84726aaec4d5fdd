package models

import "errors"

var (
	// ErrNotFound is returned when a record does not exist for the given owner.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument marks malformed ids, empty names and disallowed fields.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when a record changed between read and write.
	ErrConflict = errors.New("conflict")
)
