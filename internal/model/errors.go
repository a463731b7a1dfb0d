package model

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrRateUnavailable matches every RateUnavailableError via errors.Is
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrStaleRefresh is informational: a rate response older than the latest
	// issued request was dropped.
	ErrStaleRefresh = errors.New("stale rate refresh discarded")

	// ErrModeUnchanged is returned when a mode transition targets the current mode
	ErrModeUnchanged = errors.New("mode already active")

	// ErrLineNotFound is returned when an action references an unknown line
	ErrLineNotFound = errors.New("line not found")

	// ErrNoLines blocks submission of an empty document
	ErrNoLines = errors.New("document has no lines")

	// ErrUnknownSource is returned for an unregistered rate source
	ErrUnknownSource = errors.New("unknown rate source")

	// ErrUnknownMode is returned for an unparsable tax or price mode name
	ErrUnknownMode = errors.New("unknown mode")

	// ErrDuplicateLine is returned when a new line reuses an existing line ID
	ErrDuplicateLine = errors.New("duplicate line id")
)

// ValidationError represents validation failures on a line's base fields
type ValidationError struct {
	LineID  string
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	prefix := "validation failed"
	if e.LineID != "" {
		prefix = fmt.Sprintf("validation failed for line %s", e.LineID)
	}
	if e.Value != nil {
		return fmt.Sprintf("%s on %s: %s (value=%v, rule=%s)", prefix, e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("%s on %s: %s (rule=%s)", prefix, e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(lineID, field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		LineID:  lineID,
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// RateUnavailableError reports a currency with no resolvable exchange rate
type RateUnavailableError struct {
	Currency CurrencyCode
	Source   RateSource
	Cause    error
}

func (e *RateUnavailableError) Error() string {
	msg := fmt.Sprintf("no exchange rate for %s", e.Currency)
	if e.Source != "" {
		msg = fmt.Sprintf("%s from %s", msg, e.Source)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	return msg
}

func (e *RateUnavailableError) Unwrap() error {
	return e.Cause
}

// Is matches ErrRateUnavailable
func (e *RateUnavailableError) Is(target error) bool {
	return target == ErrRateUnavailable
}

// NewRateUnavailableError creates a new rate unavailable error
func NewRateUnavailableError(currency CurrencyCode, source RateSource, cause error) *RateUnavailableError {
	return &RateUnavailableError{
		Currency: currency,
		Source:   source,
		Cause:    cause,
	}
}

// ProviderError represents a rate provider transport or decode failure
type ProviderError struct {
	Source  RateSource
	Message string
	Cause   error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Source, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(source RateSource, message string, cause error) *ProviderError {
	return &ProviderError{
		Source:  source,
		Message: message,
		Cause:   cause,
	}
}
