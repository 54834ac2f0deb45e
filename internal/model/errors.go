package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("download item not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoSuchTask        = fmt.Errorf("%w: item is not queued or running", ErrInvalidTransition)
	ErrStoreFailure      = errors.New("record store failure")
	ErrInvalidInput      = errors.New("invalid input")
)

// StoreError marks err as a persistence failure while keeping it inspectable.
func StoreError(op string, err error) error {
	return fmt.Errorf("%w: cannot %s: %w", ErrStoreFailure, op, err)
}
