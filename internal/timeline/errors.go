package timeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for candidates rejected before resolution runs.
	ErrInvalidInput = errors.New("timeline: invalid input")
	// ErrNotFound is returned when a schedule or item does not exist or is inactive.
	ErrNotFound = errors.New("timeline: not found")
	// ErrStorage is returned when the transactional scope could not be completed.
	ErrStorage = errors.New("timeline: storage failure")
)

// InputError names the offending field of a rejected candidate.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}

// StorageError wraps a repository failure. It matches ErrStorage with errors.Is
// while keeping the driver error reachable through errors.As.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("timeline: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// storageFailure passes through taxonomy errors and wraps everything else.
func storageFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// NotFoundf builds an ErrNotFound with context for repository implementations.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}
