// Package schema provides JSON Schema types and validation for broker tools.
//
// This package implements a JSON Schema compatible descriptor type and the
// validation logic used by the broker to check invocation arguments before
// dispatch. Schema violations are reported as *FieldError values that name
// the offending parameter, which the broker maps to its InvalidArguments
// error code.
//
// # Basic Usage
//
// Creating simple schemas:
//
//	stateSchema := schema.StringWithDesc("Two-letter US state code")
//	latSchema := schema.Number()
//
// Creating an argument schema for a tool:
//
//	args := schema.Object(map[string]schema.JSON{
//		"state": schema.StringWithDesc("Two-letter US state code"),
//	}, "state") // state is required
//
// # Validation
//
// Validating an arguments map:
//
//	err := args.ValidateArguments(map[string]any{"state": "NY"}) // nil
//	err = args.ValidateArguments(map[string]any{})               // *FieldError for "state"
//
//	var fe *schema.FieldError
//	if errors.As(err, &fe) {
//		fmt.Println(fe.Field) // "state"
//	}
package schema
