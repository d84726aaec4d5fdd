package hierarchy

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"taskhub/models"
)

// StoreError wraps a persistence failure (network, disk, driver).
// It is never retried inside this package.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// PartiallyAppliedError reports a multi-record operation that failed after
// at least one write had been applied. RolledBack is true when every
// recorded compensation succeeded.
type PartiallyAppliedError struct {
	Op         string
	Step       string
	Applied    int
	RolledBack bool
	Err        error
	// CompensationErr joins the errors of compensations that failed.
	CompensationErr error
	// Removed lists the projects a failed cascade delete had already
	// deleted, deepest first.
	Removed []uuid.UUID
}

func (e *PartiallyAppliedError) Error() string {
	state := "rolled back"
	if !e.RolledBack {
		state = "not rolled back"
	}
	return fmt.Sprintf("%s partially applied: step %q failed after %d writes (%s): %v",
		e.Op, e.Step, e.Applied, state, e.Err)
}

func (e *PartiallyAppliedError) Unwrap() error {
	return e.Err
}

// wrapStoreErr leaves caller-facing sentinels alone and marks anything
// else as a StoreError.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidArgument) || errors.Is(err, models.ErrConflict) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrConflict, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrNotFound, fmt.Sprintf(format, args...))
}
