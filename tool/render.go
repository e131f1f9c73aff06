package tool

import (
	"encoding/json"
	"fmt"
)

// Render renders a handler return value as text.
// Strings and byte slices pass through unchanged; any other value is
// JSON-encoded. encoding/json sorts map keys, so identical inputs always
// produce identical output.
func Render(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to render payload: %w", err)
		}
		return string(data), nil
	}
}
