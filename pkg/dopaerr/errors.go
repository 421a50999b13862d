// Package dopaerr defines the error kinds returned by the dopa client packages.
//
// Every error names the offending value (status code, country token, column
// name, row index) so a failure can be diagnosed from its message alone.
// Callers inspect them with errors.As.
package dopaerr

import (
	"fmt"
	"strings"
)

// ValidationError reports input that failed a vocabulary or schema check,
// such as an exhausted status code set or a missing WKT column.
type ValidationError struct {
	// Field names the input being validated ("status", "column").
	Field string

	// Values lists the offending values.
	Values []string

	// Message is the human readable description.
	Message string
}

// Error implements the error interface.
func (validationError *ValidationError) Error() string {
	return validationError.Message
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field string, values []string, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Values:  values,
		Message: fmt.Sprintf(format, args...),
	}
}

// ResolutionError reports a country identifier that could not be matched
// against the reference table.
type ResolutionError struct {
	// Input is the identifier as supplied by the caller, rendered as text.
	Input string

	// Numeric is true when the input was treated as an ISO 3166-1 numeric code.
	Numeric bool
}

// Error implements the error interface.
func (resolutionError *ResolutionError) Error() string {
	if resolutionError.Numeric {
		return fmt.Sprintf("invalid ISO 3166-1 numeric country code: %s", resolutionError.Input)
	}
	return fmt.Sprintf("no country matches name %q", resolutionError.Input)
}

// TypeError reports a value of the wrong shape, for example a country
// identifier that is neither a name nor a number.
type TypeError struct {
	// Got is the Go type of the rejected value ("<nil>" for nil).
	Got string

	// Accepted describes the accepted forms.
	Accepted []string
}

// Error implements the error interface.
func (typeError *TypeError) Error() string {
	return fmt.Sprintf("country must be %s, got %s",
		strings.Join(typeError.Accepted, " or "), typeError.Got)
}

// GeometryError reports WKT text that could not be turned into a polygon
// geometry for a specific table row.
type GeometryError struct {
	// Row is the 1-based row index of the offending value.
	Row int

	// Column is the WKT column name.
	Column string

	// Err is the underlying parse failure.
	Err error
}

// Error implements the error interface.
func (geometryError *GeometryError) Error() string {
	return fmt.Sprintf("row %d: invalid WKT in column %q: %v",
		geometryError.Row, geometryError.Column, geometryError.Err)
}

// Unwrap returns the underlying parse error.
func (geometryError *GeometryError) Unwrap() error {
	return geometryError.Err
}
