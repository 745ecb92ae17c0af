package domain

import (
	"fmt"
)

// ValidationError rejects an attempted mutation. The entity it was raised
// against is left unchanged.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// DataUnavailableError means price history could not be fetched or came
// back empty; no simulation is attempted
type DataUnavailableError struct {
	Ticker string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no price data available for %s", e.Ticker)
	}
	return fmt.Sprintf("no price data available for %s: %s", e.Ticker, e.Err.Error())
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}
