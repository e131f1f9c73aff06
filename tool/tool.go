package tool

import (
	"context"

	"github.com/toolmesh/broker/schema"
)

// Tool is the interface for broker tools.
// Tools are executable components exposed to a requester by name, described
// by a JSON schema for their arguments, and dispatched by the broker.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Version returns the semantic version of this tool.
	Version() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Tags returns a list of tags for categorizing and discovering this tool.
	Tags() []string

	// InputSchema returns the JSON schema the arguments payload must satisfy.
	// The broker validates arguments against this schema before dispatch.
	InputSchema() schema.JSON

	// Timeouts returns the timeout bounds for this tool's execution.
	Timeouts() TimeoutConfig

	// Execute runs the tool with validated arguments and returns a result
	// value. The broker treats every call as potentially suspending;
	// handlers must honor context cancellation and deadlines.
	//
	// Domain-level failures of the handler's own dependencies (an
	// unreachable upstream API, a non-success status) are reported as a
	// descriptive string result, not as an error. Returned errors are
	// reserved for handler faults, which the broker reports as a failed
	// invocation result.
	Execute(ctx context.Context, args map[string]any) (any, error)
}
