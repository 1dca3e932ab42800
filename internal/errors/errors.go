// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNoData          = errors.New("no data available")
	ErrNoMeaningfulOI  = errors.New("row has no meaningful OI data")
	ErrMarketClosed    = errors.New("market is closed")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrStoreClosed     = errors.New("store is closed")
	ErrInputValidation = errors.New("input validation failed")
)

// StoreError represents a failure to read or write the snapshot/strategy
// stores. This is the only class that propagates to the scheduler.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("store error [%s] %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("store error [%s]: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, table string, err error) *StoreError {
	return &StoreError{Op: op, Table: table, Err: err}
}

// ValidationError represents a malformed input rejected at the boundary.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// DataError represents missing or unusable market data for a query. It is
// recovered locally by components, which return neutral sentinel results.
type DataError struct {
	DataType   string
	Underlying string
	Message    string
	Err        error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Underlying, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Underlying, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, underlying, message string, err error) *DataError {
	return &DataError{DataType: dataType, Underlying: underlying, Message: message, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
