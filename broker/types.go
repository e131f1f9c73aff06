package broker

import (
	"time"
)

// Request is an invocation request for a single tool.
type Request struct {
	// CorrelationID is the caller-supplied token linking this request to
	// its eventual Result. If empty, the broker assigns a UUID.
	CorrelationID string `json:"correlation_id"`

	// Tool is the name of the tool to invoke.
	Tool string `json:"tool"`

	// Arguments is the arguments payload, a mapping from parameter name
	// to value, validated against the tool's input schema.
	Arguments map[string]any `json:"arguments"`

	// Timeout optionally overrides the tool's configured execution bound
	// for this request. Zero means use the tool's default.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Result is the outcome of a single invocation.
// Every Invoke call produces exactly one Result; its CorrelationID always
// matches the originating Request.
type Result struct {
	// CorrelationID echoes the request's correlation identifier.
	CorrelationID string `json:"correlation_id"`

	// Tool is the name of the tool that was invoked.
	Tool string `json:"tool"`

	// OK indicates whether the invocation succeeded.
	OK bool `json:"ok"`

	// Payload is the handler's return value rendered as text.
	// Empty when OK is false.
	Payload string `json:"payload,omitempty"`

	// ErrorKind is the broker error code for failed invocations
	// (e.g., UNKNOWN_TOOL, INVALID_ARGUMENTS, TIMEOUT).
	ErrorKind string `json:"error_kind,omitempty"`

	// ErrorMessage is a human-readable description of the failure.
	ErrorMessage string `json:"error,omitempty"`

	// Duration is the time the invocation took, including validation.
	Duration time.Duration `json:"duration,omitempty"`

	// Err carries the structured cause for programmatic callers.
	// It is nil when OK is true and is not serialized.
	Err error `json:"-"`
}
