package warranty

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the device does not exist for this owner
	ErrNotFound = errors.New("device not found")

	// ErrDuplicateEntry blocks a save when the owner already has the serial
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrAuthRequired is returned before any store call when no identity is present
	ErrAuthRequired = errors.New("user not authenticated")

	// ErrPermissionDenied marks store faults caused by access rights
	ErrPermissionDenied = errors.New("permission denied")
)

// PersistenceError wraps a store read/write/delete fault
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// AccessDenied reports whether the fault is actionable store configuration
func (e *PersistenceError) AccessDenied() bool {
	return errors.Is(e.Err, ErrPermissionDenied)
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
