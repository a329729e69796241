package database

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("entity not found")

// ErrDuplicate is returned when an entity with the same id already exists
var ErrDuplicate = errors.New("entity already exists")

// ErrAlreadyFinalized is returned when a terminal history record would be changed
var ErrAlreadyFinalized = errors.New("planning result already finalized")

// PersistenceError wraps a failed history or graph write
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
