package features

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Vector maps feature keys to numeric values. After validation it contains
// every schema key (caller value or typical default) plus any unknown keys
// the caller supplied.
type Vector map[string]float64

// Slice projects the vector onto the given key order. Keys missing from the
// vector project as zero.
func (v Vector) Slice(names []string) []float64 {
	row := make([]float64, len(names))
	for i, name := range names {
		row[i] = v[name]
	}
	return row
}

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for key, value := range v {
		out[key] = value
	}
	return out
}

// ValidationError reports a rejected input. Field is empty when the input as
// a whole is invalid (for example an empty feature map).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a raw feature map against the schema. Values are coerced to
// float64, schema-known values are range-checked against inclusive bounds, and
// missing schema keys are filled with their typical defaults. Unknown keys are
// coerced and passed through without a range check. Coercion failures are
// reported before range failures for the same field.
func Validate(raw map[string]any) (Vector, error) {
	if len(raw) == 0 {
		return nil, &ValidationError{Message: "features cannot be empty"}
	}

	validated := make(Vector, len(definitions)+len(raw))
	for key, rawValue := range raw {
		value, err := coerce(rawValue)
		if err != nil {
			return nil, &ValidationError{Field: key, Message: "must be a number"}
		}

		def, known := definitionIndex[key]
		if !known {
			validated[key] = value
			continue
		}

		if value < def.Min {
			return nil, &ValidationError{
				Field:   key,
				Message: fmt.Sprintf("value %g is below minimum %g", value, def.Min),
			}
		}
		if value > def.Max {
			return nil, &ValidationError{
				Field:   key,
				Message: fmt.Sprintf("value %g exceeds maximum %g", value, def.Max),
			}
		}
		validated[key] = value
	}

	for _, def := range definitions {
		if _, ok := validated[def.Key]; !ok {
			validated[def.Key] = def.Typical
		}
	}

	return validated, nil
}

func coerce(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}
