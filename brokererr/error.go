package brokererr

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes used by the broker for consistent error reporting.
// Broker-level codes always surface to the requester as a failed invocation
// result; handler-level domain failures use the upstream convention instead
// (see CodeUpstreamUnavailable).
const (
	// CodeUnknownTool indicates the requested tool name is not registered.
	CodeUnknownTool = "UNKNOWN_TOOL"

	// CodeInvalidArguments indicates the arguments payload violated the
	// tool's declared schema. The Parameter field names the offender.
	CodeInvalidArguments = "INVALID_ARGUMENTS"

	// CodeHandlerError indicates the handler raised a fault during
	// execution. The underlying cause is preserved on the error.
	CodeHandlerError = "HANDLER_ERROR"

	// CodeTimeout indicates the handler exceeded the configured bound.
	CodeTimeout = "TIMEOUT"

	// CodeCancelled indicates the caller cancelled the invocation before
	// the handler completed.
	CodeCancelled = "CANCELLED"

	// CodeQueueFull indicates the broker's in-flight bound was reached and
	// the invocation was rejected at admission.
	CodeQueueFull = "QUEUE_FULL"

	// CodeUpstreamUnavailable indicates a handler's own dependency failed.
	// Handlers report this condition inside a successful result payload;
	// the code exists for handlers that want to classify the condition in
	// logs and metrics.
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
)

// Error is a structured error type for broker operations.
// It records which tool and operation failed, carries a standard error
// code, and can wrap underlying errors.
type Error struct {
	// Tool is the name of the tool the invocation targeted.
	Tool string

	// Operation is the broker operation that failed (e.g., "invoke").
	Operation string

	// Code is a standard error code constant.
	Code string

	// Message is a human-readable error message.
	Message string

	// Parameter names the offending argument for CodeInvalidArguments.
	Parameter string

	// Details contains additional context as key-value pairs.
	Details map[string]any

	// Cause is the underlying error that caused this error.
	Cause error
}

// New creates a new structured broker error.
//
// Example:
//
//	err := brokererr.New("get_forecast", "invoke", brokererr.CodeTimeout,
//	    "handler exceeded 30s bound")
func New(tool, operation, code, message string) *Error {
	return &Error{
		Tool:      tool,
		Operation: operation,
		Code:      code,
		Message:   message,
	}
}

// WithCause adds an underlying error to this error.
// Returns the same error instance for method chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithParameter records the offending parameter name.
// Returns the same error instance for method chaining.
func (e *Error) WithParameter(name string) *Error {
	e.Parameter = name
	return e
}

// WithDetails adds additional context to this error.
// Returns the same error instance for method chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Error implements the error interface.
// It formats the error as: "tool [operation/code]: message: cause"
//
// Examples:
//   - "get_alerts [invoke/UNKNOWN_TOOL]: tool is not registered"
//   - "get_forecast [invoke/HANDLER_ERROR]: handler failed: dial tcp: connection refused"
func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("%s [%s/%s]", e.Tool, e.Operation, e.Code))

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause error.
// This enables errors.Is() and errors.As() to work with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements error equality checking for errors.Is().
// Two Error values are equal if they share Tool, Operation, and Code.
// The package sentinels match any Error carrying the corresponding code,
// so errors.Is(err, ErrTimeout) works regardless of tool or operation.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnknownTool:
		return e.Code == CodeUnknownTool
	case ErrTimeout:
		return e.Code == CodeTimeout
	case ErrInvalidArguments:
		return e.Code == CodeInvalidArguments
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Tool == t.Tool && e.Operation == t.Operation && e.Code == t.Code
}

// As implements error type assertion for errors.As().
func (e *Error) As(target any) bool {
	t, ok := target.(**Error)
	if !ok {
		return false
	}
	*t = e
	return true
}

// CodeOf extracts the broker error code from err, unwrapping as needed.
// It returns an empty string when err carries no *Error in its chain.
func CodeOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Sentinel errors for common scenarios. An *Error carrying the matching
// code satisfies errors.Is against these.

var (
	// ErrUnknownTool matches errors with CodeUnknownTool.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrTimeout matches errors with CodeTimeout.
	ErrTimeout = errors.New("invocation timed out")

	// ErrInvalidArguments matches errors with CodeInvalidArguments.
	ErrInvalidArguments = errors.New("invalid arguments")
)
