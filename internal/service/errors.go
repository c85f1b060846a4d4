package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for the item service. Use errors.Is() to check these.
var (
	// ErrNotFound indicates the requested item does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrDuplicateID indicates a creation attempt reused an ID already in use.
	ErrDuplicateID = errors.New("item already exists")

	// ErrInvalidItem indicates the request payload failed validation.
	ErrInvalidItem = errors.New("invalid item")
)

// DuplicateIDError reports the ID that is already taken. It matches ErrDuplicateID.
type DuplicateIDError struct {
	ID int64
}

// Error implements the error interface.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("Item with id %d already exists", e.ID)
}

// Is reports whether target is ErrDuplicateID.
func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}
