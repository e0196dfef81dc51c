package objective

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrObjectiveNotFound = errors.New("objective not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrWeekNotFound      = errors.New("week not found")
	ErrInvalidInput      = errors.New("invalid input")
)

// ValidationError names the field that was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrObjectiveNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrWeekNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
