// Package tool provides interfaces and builders for creating broker tools.
//
// The tool package defines the Tool interface, which represents a named,
// schema-described operation exposed to a requester for structured
// invocation. Tools are the building blocks the broker dispatches to.
//
// # Core Concepts
//
// Tool: An executable component with:
//   - Unique name and version
//   - Human-readable description
//   - Tags for categorization and discovery
//   - JSON Schema definition for its arguments
//   - Timeout bounds for execution
//   - Execute function performing the operation
//
// Config: A builder pattern configuration for constructing tools.
//
// Descriptor: A metadata snapshot of a tool without execution logic, used
// for list_tools responses.
//
// # Usage
//
// Creating a simple tool:
//
//	alerts, err := tool.New(tool.NewConfig().
//		SetName("get_alerts").
//		SetDescription("Get weather alerts for a US state").
//		SetInputSchema(schema.Object(map[string]schema.JSON{
//			"state": schema.StringWithDesc("Two-letter US state code"),
//		}, "state")).
//		SetExecuteFunc(func(ctx context.Context, args map[string]any) (any, error) {
//			state := args["state"].(string)
//			return lookupAlerts(ctx, state)
//		}))
//
// # Handler Contract
//
// Execute functions receive arguments already validated against the input
// schema. Failures of the handler's own dependencies (an unreachable
// upstream API) are reported as a descriptive string result rather than an
// error; returned errors are reserved for handler faults and surface to the
// requester as failed invocation results.
package tool
