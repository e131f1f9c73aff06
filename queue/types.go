package queue

import (
	"fmt"
	"time"
)

// Invocation is a single invocation request submitted to a tool's queue.
// It carries everything a remote worker needs to execute the tool and
// publish the outcome back to the broker.
type Invocation struct {
	// CorrelationID links this invocation to its eventual Outcome.
	CorrelationID string `json:"correlation_id"`

	// Tool is the name of the tool to execute.
	Tool string `json:"tool"`

	// ArgumentsJSON is the arguments map serialized as JSON.
	ArgumentsJSON string `json:"arguments_json"`

	// TimeoutMillis is the requested execution bound in milliseconds.
	// Zero means use the tool's configured default.
	TimeoutMillis int64 `json:"timeout_ms,omitempty"`

	// TraceID is the distributed tracing trace ID for observability.
	TraceID string `json:"trace_id,omitempty"`

	// SpanID is the distributed tracing span ID for observability.
	SpanID string `json:"span_id,omitempty"`

	// SubmittedAt is the Unix timestamp in milliseconds when the
	// invocation was submitted.
	SubmittedAt int64 `json:"submitted_at"`
}

// Outcome is the result of executing an Invocation.
// It is published to a correlation-specific pub/sub channel for the
// submitting broker to collect.
type Outcome struct {
	// CorrelationID matches the originating Invocation.
	CorrelationID string `json:"correlation_id"`

	// Tool is the name of the tool that was executed.
	Tool string `json:"tool"`

	// OK indicates whether the invocation succeeded.
	OK bool `json:"ok"`

	// Payload is the rendered result text. Empty when OK is false.
	Payload string `json:"payload,omitempty"`

	// ErrorKind is the broker error code for failed invocations.
	ErrorKind string `json:"error_kind,omitempty"`

	// Error is the human-readable failure message.
	Error string `json:"error,omitempty"`

	// WorkerID identifies the worker that processed this invocation.
	WorkerID string `json:"worker_id"`

	// StartedAt is the Unix timestamp in milliseconds when execution started.
	StartedAt int64 `json:"started_at"`

	// CompletedAt is the Unix timestamp in milliseconds when execution completed.
	CompletedAt int64 `json:"completed_at"`
}

// ToolMeta contains metadata about a registered tool.
// It is stored as a Redis hash and used for tool discovery.
type ToolMeta struct {
	// Name is the unique tool identifier.
	Name string `json:"name"`

	// Version is the semantic version of the tool implementation.
	Version string `json:"version"`

	// Description is a human-readable description of the tool's purpose.
	Description string `json:"description"`

	// SchemaJSON is the tool's argument schema serialized as JSON.
	SchemaJSON string `json:"schema"`

	// Tags are keywords for categorizing the tool.
	Tags []string `json:"tags"`

	// WorkerCount is the number of active workers for this tool.
	// Updated by IncrementWorkerCount/DecrementWorkerCount.
	WorkerCount int `json:"worker_count"`
}

// IsValid checks that the Invocation has all required fields populated.
// Returns an error describing the first validation failure.
func (i *Invocation) IsValid() error {
	if i.CorrelationID == "" {
		return fmt.Errorf("correlation_id is required")
	}
	if i.Tool == "" {
		return fmt.Errorf("tool name is required")
	}
	if i.ArgumentsJSON == "" {
		return fmt.Errorf("arguments_json is required")
	}
	if i.SubmittedAt <= 0 {
		return fmt.Errorf("submitted_at must be positive, got %d", i.SubmittedAt)
	}
	return nil
}

// Age returns the duration since this invocation was submitted.
// Useful for detecting stale queue entries and computing wait time.
func (i *Invocation) Age() time.Duration {
	if i.SubmittedAt <= 0 {
		return 0
	}
	return time.Since(time.UnixMilli(i.SubmittedAt))
}

// Duration returns the execution time of a completed Outcome.
func (o *Outcome) Duration() time.Duration {
	if o.StartedAt <= 0 || o.CompletedAt < o.StartedAt {
		return 0
	}
	return time.Duration(o.CompletedAt-o.StartedAt) * time.Millisecond
}
