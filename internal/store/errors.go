package store

import (
	"errors"
	"fmt"
)

var (
	// ErrBatchNotFound is returned when an operation targets a batch id
	// that matches no row.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrSpanNotFound is returned when a span id matches no row.
	ErrSpanNotFound = errors.New("span not found")

	// ErrSpanAssigned is returned when batch creation includes a span that
	// already belongs to another batch.
	ErrSpanAssigned = errors.New("span already assigned to a batch")
)

// ValidationError reports invalid caller-supplied filter or pagination input.
// It is never retried and maps to a 400-equivalent at the boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
