package planner

import (
	"errors"
	"fmt"
	"strings"

	"trip-planner/internal/database"
)

// ErrNoPlaces is returned when a request yields no candidate places
var ErrNoPlaces = errors.New("no places available for itinerary")

// ValidationError lists every problem found in a planning request
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid planning request: " + strings.Join(e.Problems, "; ")
}

// NotFoundError names the referenced entity that does not exist
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return database.ErrNotFound
}
