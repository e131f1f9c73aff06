package tool

import "github.com/toolmesh/broker/schema"

// Descriptor describes a tool's metadata.
// It provides a snapshot of a tool's configuration without the execution
// logic, suitable for list_tools responses and discovery.
type Descriptor struct {
	// Name is the unique identifier for the tool.
	Name string `json:"name"`

	// Version is the semantic version of the tool.
	Version string `json:"version"`

	// Description is a human-readable description of what the tool does.
	Description string `json:"description"`

	// Tags are labels for categorizing and discovering the tool.
	Tags []string `json:"tags,omitempty"`

	// InputSchema is the JSON schema for the tool's arguments.
	InputSchema schema.JSON `json:"input_schema"`
}

// ToDescriptor converts a Tool to its Descriptor.
// This extracts the metadata from a Tool without including the execution logic.
func ToDescriptor(t Tool) Descriptor {
	return Descriptor{
		Name:        t.Name(),
		Version:     t.Version(),
		Description: t.Description(),
		Tags:        t.Tags(),
		InputSchema: t.InputSchema(),
	}
}
