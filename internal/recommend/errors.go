package recommend

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the query name matches no record.
	ErrNotFound = errors.New("medicine not found")
	// ErrInvalidRequest is returned for requests the pipeline cannot run, such as a
	// result size below 1.
	ErrInvalidRequest = errors.New("invalid recommendation request")
	// ErrNoSnapshot is returned when no dataset has been loaded yet.
	ErrNoSnapshot = errors.New("no dataset loaded")
)

// NotFoundError reports the query that failed lookup. It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("medicine not found: %s", e.Query)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
