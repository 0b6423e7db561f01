// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrConfigNotFound    = errors.New("configuration not found")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrLiveModeBlocked   = errors.New("live mode is blocked: this engine only executes paper trades")
	ErrNoPendingOrder    = errors.New("no pending order")
	ErrNoOpenPosition    = errors.New("no open position")
	ErrPositionOpen      = errors.New("a position is already open")
	ErrNoArmedExit       = errors.New("no armed exit")
	ErrCorruptState      = errors.New("corrupt persisted state")
	ErrInsufficientData  = errors.New("insufficient data for calculation")
	ErrConnectionFailed  = errors.New("connection failed")
	ErrSymbolNotFound    = errors.New("symbol not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrInputValidation   = errors.New("input validation failed")
	ErrDatabaseError     = errors.New("database error")
	ErrPositionFullyUsed = errors.New("position has no remaining size to close")
)

// StateError reports a problem with one persisted state record.
type StateError struct {
	Record string
	Op     string
	Err    error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state error [%s] %s: %v", e.Record, e.Op, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// NewStateError creates a new StateError.
func NewStateError(record, op string, err error) *StateError {
	return &StateError{
		Record: record,
		Op:     op,
		Err:    err,
	}
}

// NewCorruptStateError reports an authoritative record that cannot be decoded.
func NewCorruptStateError(record string, err error) *StateError {
	return &StateError{
		Record: record,
		Op:     "decode",
		Err:    fmt.Errorf("%w: %v", ErrCorruptState, err),
	}
}

// ValidationError represents a validation error.
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
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a market-data error.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// RiskError represents a risk guard breach.
type RiskError struct {
	Rule    string
	Current float64
	Limit   float64
	Message string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk violation [%s]: %s (current: %.4f, limit: %.4f)", e.Rule, e.Message, e.Current, e.Limit)
}

// NewRiskError creates a new RiskError.
func NewRiskError(rule string, current, limit float64, message string) *RiskError {
	return &RiskError{
		Rule:    rule,
		Current: current,
		Limit:   limit,
		Message: message,
	}
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

// New is errors.New re-exported so callers need a single import.
func New(text string) error {
	return errors.New(text)
}
