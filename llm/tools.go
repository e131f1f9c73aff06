package llm

import (
	"encoding/json"
	"fmt"

	"github.com/toolmesh/broker/schema"
	"github.com/toolmesh/broker/tool"
)

// ToolDef defines a tool that an LLM can invoke.
type ToolDef struct {
	// Name is the unique identifier for this tool.
	Name string

	// Description explains what the tool does and when to use it.
	// This helps the LLM decide when to invoke the tool.
	Description string

	// Schema describes the tool's input parameters.
	Schema schema.JSON
}

// ToolCall represents an LLM's request to invoke a tool.
type ToolCall struct {
	// ID is a unique identifier for this tool call. It doubles as the
	// correlation id for the resulting broker invocation, so the result
	// always matches back to this call.
	ID string

	// Name is the name of the tool to invoke.
	Name string

	// Arguments contains the tool parameters as a JSON string.
	Arguments string
}

// ToolResult represents the result of executing a tool.
type ToolResult struct {
	// ToolCallID matches the ID from the corresponding ToolCall.
	ToolCallID string

	// Content contains the result data as a string.
	Content string

	// IsError indicates whether the tool invocation failed.
	// If true, Content contains an error message.
	IsError bool
}

// DefsFromDescriptors converts registry descriptors into LLM tool
// definitions.
func DefsFromDescriptors(descriptors []tool.Descriptor) []ToolDef {
	defs := make([]ToolDef, 0, len(descriptors))
	for _, d := range descriptors {
		defs = append(defs, ToolDef{
			Name:        d.Name,
			Description: d.Description,
			Schema:      d.InputSchema,
		})
	}
	return defs
}

// Validate checks if the tool definition is valid.
func (t *ToolDef) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if t.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	return nil
}

// ParseArguments parses the tool call arguments into the provided value.
// The value parameter should be a pointer to the struct that will receive
// the arguments.
func (c *ToolCall) ParseArguments(v any) error {
	if c.Arguments == "" {
		return fmt.Errorf("no arguments to parse")
	}
	return json.Unmarshal([]byte(c.Arguments), v)
}

// ArgumentsMap parses the tool call arguments into a broker arguments map.
// An empty arguments string yields an empty map.
func (c *ToolCall) ArgumentsMap() (map[string]any, error) {
	if c.Arguments == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON in arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// Validate checks if the tool call is valid.
func (c *ToolCall) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("tool call ID cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("tool call name cannot be empty")
	}
	if c.Arguments == "" {
		return fmt.Errorf("tool call arguments cannot be empty")
	}

	var temp any
	if err := json.Unmarshal([]byte(c.Arguments), &temp); err != nil {
		return fmt.Errorf("invalid JSON in arguments: %w", err)
	}

	return nil
}

// NewToolResult creates a successful tool result.
func NewToolResult(toolCallID, content string) ToolResult {
	return ToolResult{
		ToolCallID: toolCallID,
		Content:    content,
		IsError:    false,
	}
}

// NewToolError creates an error tool result.
func NewToolError(toolCallID, errorMsg string) ToolResult {
	return ToolResult{
		ToolCallID: toolCallID,
		Content:    errorMsg,
		IsError:    true,
	}
}

// Validate checks if the tool result is valid.
func (r *ToolResult) Validate() error {
	if r.ToolCallID == "" {
		return fmt.Errorf("tool call ID cannot be empty")
	}
	if r.Content == "" {
		return fmt.Errorf("tool result content cannot be empty")
	}
	return nil
}
