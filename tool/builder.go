package tool

import (
	"context"
	"errors"

	"github.com/toolmesh/broker/schema"
)

// ExecuteFunc is a function that implements the tool's execution logic.
// It receives arguments already validated against the tool's input schema.
type ExecuteFunc func(ctx context.Context, args map[string]any) (any, error)

// Config holds the configuration for building a Tool.
type Config struct {
	name        string
	version     string
	description string
	tags        []string
	inputSchema schema.JSON
	timeouts    TimeoutConfig
	executeFunc ExecuteFunc
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		version:     "1.0.0",
		tags:        []string{},
		inputSchema: schema.Object(map[string]schema.JSON{}),
	}
}

// SetName sets the tool name.
func (c *Config) SetName(name string) *Config {
	c.name = name
	return c
}

// SetVersion sets the tool version.
func (c *Config) SetVersion(version string) *Config {
	c.version = version
	return c
}

// SetDescription sets the tool description.
func (c *Config) SetDescription(desc string) *Config {
	c.description = desc
	return c
}

// SetTags sets the tool tags.
func (c *Config) SetTags(tags []string) *Config {
	c.tags = tags
	return c
}

// SetInputSchema sets the argument schema.
func (c *Config) SetInputSchema(s schema.JSON) *Config {
	c.inputSchema = s
	return c
}

// SetTimeouts sets the timeout bounds.
func (c *Config) SetTimeouts(tc TimeoutConfig) *Config {
	c.timeouts = tc
	return c
}

// SetExecuteFunc sets the execution function.
func (c *Config) SetExecuteFunc(fn ExecuteFunc) *Config {
	c.executeFunc = fn
	return c
}

// builtTool is the internal implementation of the Tool interface.
type builtTool struct {
	name        string
	version     string
	description string
	tags        []string
	inputSchema schema.JSON
	timeouts    TimeoutConfig
	executeFunc ExecuteFunc
}

// New creates a new Tool from the provided Config.
// Returns an error if required fields (name, executeFunc) are missing or
// the timeout bounds are inconsistent.
func New(cfg *Config) (Tool, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.name == "" {
		return nil, errors.New("tool name is required")
	}

	if cfg.executeFunc == nil {
		return nil, errors.New("execute function is required")
	}

	if err := cfg.timeouts.Validate(); err != nil {
		return nil, err
	}

	return &builtTool{
		name:        cfg.name,
		version:     cfg.version,
		description: cfg.description,
		tags:        cfg.tags,
		inputSchema: cfg.inputSchema,
		timeouts:    cfg.timeouts,
		executeFunc: cfg.executeFunc,
	}, nil
}

// Name returns the tool name.
func (t *builtTool) Name() string {
	return t.name
}

// Version returns the tool version.
func (t *builtTool) Version() string {
	return t.version
}

// Description returns the tool description.
func (t *builtTool) Description() string {
	return t.description
}

// Tags returns the tool tags.
func (t *builtTool) Tags() []string {
	return t.tags
}

// InputSchema returns the argument schema.
func (t *builtTool) InputSchema() schema.JSON {
	return t.inputSchema
}

// Timeouts returns the timeout bounds.
func (t *builtTool) Timeouts() TimeoutConfig {
	return t.timeouts
}

// Execute runs the tool's execution function.
// Argument validation is the broker's responsibility; by the time Execute
// is called the arguments have already passed the input schema.
func (t *builtTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return t.executeFunc(ctx, args)
}
