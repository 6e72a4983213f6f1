package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIndexNotFound signals a missing index mapping.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexExists signals a duplicate index.
	ErrIndexExists = errors.New("index already exists")
	// ErrInvalidMapping signals a broken mapping definition.
	ErrInvalidMapping = errors.New("invalid mapping")
	// ErrInvalidDocument signals an unparseable document.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrMergeConflict signals a rejected mapping update.
	ErrMergeConflict = errors.New("mapping merge conflict")
)

// MergeConflictError wraps ErrMergeConflict with the full conflict list
// accumulated by the merge, so callers can report every incompatibility
// at once instead of the first.
type MergeConflictError struct {
	Conflicts []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMergeConflict.Error(), strings.Join(e.Conflicts, "; "))
}

func (e *MergeConflictError) Unwrap() error { return ErrMergeConflict }

// NewMergeConflict creates a merge conflict error from the conflict list.
func NewMergeConflict(conflicts []string) error {
	return &MergeConflictError{Conflicts: conflicts}
}
