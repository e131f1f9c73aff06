// Package brokererr provides structured error types for the tool broker.
//
// # Overview
//
// This package defines standard error codes and a structured Error type
// for consistent error reporting across the broker and its workers. It
// integrates with Go's standard errors package for wrapping and unwrapping.
//
// # Error Codes
//
// Broker-level codes, always reported to the requester as a failed
// invocation result:
//
//   - CodeUnknownTool: Tool name not in the registry
//   - CodeInvalidArguments: Arguments violated the tool's schema
//   - CodeHandlerError: Handler raised a fault during execution
//   - CodeTimeout: Handler exceeded the configured bound
//   - CodeCancelled: Caller cancelled the invocation
//   - CodeQueueFull: In-flight bound reached at admission
//
// Handler-level code:
//
//   - CodeUpstreamUnavailable: A handler's dependency failed. Handlers
//     report this inside a successful result payload as a descriptive
//     message rather than failing the invocation.
//
// # Usage
//
// Create a basic error:
//
//	err := brokererr.New("get_alerts", "invoke", brokererr.CodeUnknownTool,
//	    "tool is not registered")
//
// Add context with method chaining:
//
//	err := brokererr.New("get_forecast", "invoke", brokererr.CodeInvalidArguments,
//	    "schema validation failed").
//	    WithParameter("latitude").
//	    WithCause(validationErr)
//
// Extract the code from a wrapped chain:
//
//	if brokererr.CodeOf(err) == brokererr.CodeTimeout {
//	    // handle timeout
//	}
package brokererr
