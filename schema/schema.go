package schema

import (
	"fmt"
	"reflect"
	"regexp"
)

// JSON represents a JSON Schema definition.
// It describes the shape of a tool's arguments: parameter types, required
// parameters, and value constraints.
type JSON struct {
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Properties  map[string]JSON `json:"properties,omitempty"`
	Required    []string        `json:"required,omitempty"`
	Items       *JSON           `json:"items,omitempty"`
	Enum        []any           `json:"enum,omitempty"`
	Default     any             `json:"default,omitempty"`
	Minimum     *float64        `json:"minimum,omitempty"`
	Maximum     *float64        `json:"maximum,omitempty"`
	MinLength   *int            `json:"minLength,omitempty"`
	MaxLength   *int            `json:"maxLength,omitempty"`
	Pattern     string          `json:"pattern,omitempty"`
	Format      string          `json:"format,omitempty"`
}

// FieldError reports a schema violation at a named parameter.
// Field carries the parameter name as declared in the schema, so callers
// can surface which argument was rejected.
type FieldError struct {
	// Field is the name of the offending parameter.
	Field string

	// Reason describes why the value was rejected.
	Reason string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Field, e.Reason)
}

// Any creates a JSON schema that accepts any type.
func Any() JSON {
	return JSON{}
}

// String creates a JSON schema for a string type.
func String() JSON {
	return JSON{Type: "string"}
}

// StringWithDesc creates a JSON schema for a string type with a description.
func StringWithDesc(desc string) JSON {
	return JSON{
		Type:        "string",
		Description: desc,
	}
}

// Int creates a JSON schema for an integer type.
func Int() JSON {
	return JSON{Type: "integer"}
}

// Number creates a JSON schema for a number type.
func Number() JSON {
	return JSON{Type: "number"}
}

// NumberWithDesc creates a JSON schema for a number type with a description.
func NumberWithDesc(desc string) JSON {
	return JSON{
		Type:        "number",
		Description: desc,
	}
}

// Bool creates a JSON schema for a boolean type.
func Bool() JSON {
	return JSON{Type: "boolean"}
}

// Array creates a JSON schema for an array type with the specified item schema.
func Array(items JSON) JSON {
	return JSON{
		Type:  "array",
		Items: &items,
	}
}

// Object creates a JSON schema for an object type with the specified
// properties and required fields.
func Object(properties map[string]JSON, required ...string) JSON {
	return JSON{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// Enum creates a JSON schema with enumerated values.
func Enum(values ...any) JSON {
	return JSON{Enum: values}
}

// Validate validates the given value against this JSON schema.
// It returns an error if the value does not conform to the schema.
func (s JSON) Validate(value any) error {
	// Handle nil values
	if value == nil {
		if s.Type != "" {
			return fmt.Errorf("expected type %s, got nil", s.Type)
		}
		return nil
	}

	// Enum constraints take precedence over type checks
	if len(s.Enum) > 0 {
		return s.validateEnum(value)
	}

	switch s.Type {
	case "string":
		return s.validateString(value)
	case "integer":
		return s.validateInteger(value)
	case "number":
		return s.validateNumber(value)
	case "boolean":
		return s.validateBoolean(value)
	case "array":
		return s.validateArray(value)
	case "object":
		args, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
		return s.ValidateArguments(args)
	}

	return nil
}

// ValidateArguments validates an arguments map against this object schema.
// Violations are reported as *FieldError values naming the offending
// parameter: missing required parameters are checked first, then
// per-property constraints. Properties not declared in the schema are
// ignored.
func (s JSON) ValidateArguments(args map[string]any) error {
	for _, req := range s.Required {
		if _, exists := args[req]; !exists {
			return &FieldError{Field: req, Reason: "required parameter is missing"}
		}
	}

	for name, value := range args {
		propSchema, declared := s.Properties[name]
		if !declared {
			continue
		}
		if err := propSchema.Validate(value); err != nil {
			// Nested object violations already carry the innermost name
			if fe, ok := err.(*FieldError); ok {
				return fe
			}
			return &FieldError{Field: name, Reason: err.Error()}
		}
	}

	return nil
}

// validateString validates string type and constraints.
func (s JSON) validateString(value any) error {
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}

	if s.MinLength != nil && len(str) < *s.MinLength {
		return fmt.Errorf("string length %d is less than minimum %d", len(str), *s.MinLength)
	}
	if s.MaxLength != nil && len(str) > *s.MaxLength {
		return fmt.Errorf("string length %d is greater than maximum %d", len(str), *s.MaxLength)
	}

	if s.Pattern != "" {
		matched, err := regexp.MatchString(s.Pattern, str)
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("string does not match pattern %s", s.Pattern)
		}
	}

	return nil
}

// validateInteger validates integer type and numeric constraints.
// JSON decoding produces float64 for all numbers, so a float with no
// fractional part is accepted as an integer.
func (s JSON) validateInteger(value any) error {
	var num float64

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		num = float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		num = float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		num = v.Float()
		if num != float64(int64(num)) {
			return fmt.Errorf("expected integer, got float with decimal: %v", value)
		}
	default:
		return fmt.Errorf("expected integer, got %T", value)
	}

	return s.validateBounds(num)
}

// validateNumber validates number type and numeric constraints.
func (s JSON) validateNumber(value any) error {
	var num float64

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		num = float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		num = float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		num = v.Float()
	default:
		return fmt.Errorf("expected number, got %T", value)
	}

	return s.validateBounds(num)
}

// AsNumber coerces a numeric argument value to float64. It accepts the
// same Go kinds number validation accepts, so any value that passed
// validation for a number field coerces successfully.
func AsNumber(value any) (float64, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

// validateBounds validates minimum and maximum constraints.
func (s JSON) validateBounds(num float64) error {
	if s.Minimum != nil && num < *s.Minimum {
		return fmt.Errorf("value %v is less than minimum %v", num, *s.Minimum)
	}
	if s.Maximum != nil && num > *s.Maximum {
		return fmt.Errorf("value %v is greater than maximum %v", num, *s.Maximum)
	}
	return nil
}

// validateBoolean validates boolean type.
func (s JSON) validateBoolean(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", value)
	}
	return nil
}

// validateArray validates array type and item constraints.
func (s JSON) validateArray(value any) error {
	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Errorf("expected array, got %T", value)
	}

	if s.Items != nil {
		for i := 0; i < v.Len(); i++ {
			if err := s.Items.Validate(v.Index(i).Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}

	return nil
}

// validateEnum validates that the value is one of the allowed enum values.
func (s JSON) validateEnum(value any) error {
	for _, enumVal := range s.Enum {
		if reflect.DeepEqual(value, enumVal) {
			return nil
		}
	}
	return fmt.Errorf("value %v is not one of the allowed values: %v", value, s.Enum)
}
