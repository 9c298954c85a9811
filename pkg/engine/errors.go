package engine

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a failure by the stage that produced it.
type ErrorClass string

const (
	// ErrorClassResolution indicates an empty selector or an unknown strategy.
	ErrorClassResolution ErrorClass = "resolution"

	// ErrorClassAction indicates the driver could not perform an interaction,
	// for example because the element was not interactable.
	ErrorClassAction ErrorClass = "action"

	// ErrorClassAssertion indicates a hard assertion failed. It aborts the scenario.
	ErrorClassAssertion ErrorClass = "assertion"

	// ErrorClassAssertionRecorded indicates a soft assertion failed. It is
	// handed to the soft recorder and never returned from Assert.
	ErrorClassAssertionRecorded ErrorClass = "assertion_recorded"

	// ErrorClassWaitTimeout indicates a condition was not met in time.
	ErrorClassWaitTimeout ErrorClass = "wait_timeout"
)

// EngineError is a classified error carrying the context needed to diagnose
// it from the trace alone.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the failure classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Target describes the handle or page the operation ran against.
	Target string `json:"target,omitempty"`

	// Operation is the strategy, verb, predicate or wait kind involved.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying driver error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	switch {
	case e.Target != "" && e.Operation != "":
		msg += fmt.Sprintf(" (target=%s, operation=%s)", e.Target, e.Operation)
	case e.Target != "":
		msg += fmt.Sprintf(" (target=%s)", e.Target)
	case e.Operation != "":
		msg += fmt.Sprintf(" (operation=%s)", e.Operation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches another EngineError with the same class, and the same code when
// the target sets one. This makes the class sentinels work with errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && (t.Code == "" || e.Code == t.Code)
}

// Sentinels for errors.Is checks by class.
var (
	ErrResolution        = &EngineError{Class: ErrorClassResolution}
	ErrAction            = &EngineError{Class: ErrorClassAction}
	ErrAssertion         = &EngineError{Class: ErrorClassAssertion}
	ErrAssertionRecorded = &EngineError{Class: ErrorClassAssertionRecorded}
	ErrWaitTimeout       = &EngineError{Class: ErrorClassWaitTimeout}
)

// NewResolutionError creates a new resolution error.
func NewResolutionError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassResolution,
		Message: message,
		Err:     err,
	}
}

// NewActionError creates a new action error.
func NewActionError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassAction,
		Message: message,
		Err:     err,
	}
}

// NewAssertionFailure creates a new hard assertion failure.
func NewAssertionFailure(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassAssertion,
		Message: message,
		Err:     err,
	}
}

// NewAssertionRecorded creates a new soft assertion failure.
func NewAssertionRecorded(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassAssertionRecorded,
		Message: message,
		Err:     err,
	}
}

// NewWaitTimeoutError creates a new wait timeout error.
func NewWaitTimeoutError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassWaitTimeout,
		Message: message,
		Err:     err,
	}
}

// WithTarget adds target context to an error.
func (e *EngineError) WithTarget(target string) *EngineError {
	e.Target = target
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func hasClass(err error, class ErrorClass) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// IsResolutionError returns true if the error is classified as a resolution error.
func IsResolutionError(err error) bool {
	return hasClass(err, ErrorClassResolution)
}

// IsActionError returns true if the error is classified as an action error.
func IsActionError(err error) bool {
	return hasClass(err, ErrorClassAction)
}

// IsAssertionFailure returns true if the error is a hard assertion failure.
func IsAssertionFailure(err error) bool {
	return hasClass(err, ErrorClassAssertion)
}

// IsAssertionRecorded returns true if the error is a recorded soft failure.
func IsAssertionRecorded(err error) bool {
	return hasClass(err, ErrorClassAssertionRecorded)
}

// IsWaitTimeout returns true if the error is a wait timeout.
func IsWaitTimeout(err error) bool {
	return hasClass(err, ErrorClassWaitTimeout)
}

// ClassOf returns the class of err, or "" when err is not an EngineError.
func ClassOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class
	}
	return ""
}

// Common error codes.
const (
	ErrCodeEmptySelector    = "EMPTY_SELECTOR"
	ErrCodeUnknownStrategy  = "UNKNOWN_STRATEGY"
	ErrCodeInvalidOptions   = "INVALID_OPTIONS"
	ErrCodeNotVisible       = "NOT_VISIBLE"
	ErrCodeNoNewPage        = "NO_NEW_PAGE"
	ErrCodeMismatch         = "MISMATCH"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeIterationLimit   = "ITERATION_LIMIT"
	ErrCodeUnknownPredicate = "UNKNOWN_PREDICATE"
)
