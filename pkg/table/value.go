package table

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MissingText is how a missing value is rendered in text and CSV output.
const MissingText = "NA"

// Value is a single cell: either a present value or the missing marker.
// The zero Value is missing.
type Value struct {
	data    any
	present bool
}

// Present wraps v as a present value. A nil v is still present; use Missing
// for absent data. Normalize never produces Present(nil).
func Present(v any) Value {
	return Value{data: v, present: true}
}

// Missing returns the missing-value marker.
func Missing() Value {
	return Value{}
}

// IsMissing reports whether the cell holds the missing marker.
func (value Value) IsMissing() bool {
	return !value.present
}

// Interface returns the underlying value, or nil when missing.
func (value Value) Interface() any {
	if !value.present {
		return nil
	}
	return value.data
}

// String renders the value for display. Missing renders as MissingText.
func (value Value) String() string {
	if !value.present {
		return MissingText
	}
	switch typed := value.data.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	case nil:
		return ""
	case map[string]any, []any:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	default:
		return fmt.Sprint(typed)
	}
}

// Text returns the value as a string when it is present text.
func (value Value) Text() (string, bool) {
	if !value.present {
		return "", false
	}
	text, ok := value.data.(string)
	return text, ok
}

// Float64 returns the value as a float when it is present and numeric.
func (value Value) Float64() (float64, bool) {
	if !value.present {
		return 0, false
	}
	switch typed := value.data.(type) {
	case json.Number:
		parsed, err := typed.Float64()
		return parsed, err == nil
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case int32:
		return float64(typed), true
	default:
		return 0, false
	}
}

// Int returns the value as an int when it is present and integral.
func (value Value) Int() (int, bool) {
	if number, ok := value.data.(json.Number); ok && value.present {
		parsed, err := number.Int64()
		if err == nil {
			return int(parsed), true
		}
	}
	parsed, ok := value.Float64()
	if !ok || parsed != float64(int(parsed)) {
		return 0, false
	}
	return int(parsed), true
}

// Kind classifies the value.
func (value Value) Kind() Kind {
	if !value.present {
		return KindEmpty
	}
	switch value.data.(type) {
	case string:
		return KindText
	case bool:
		return KindBool
	case json.Number, float64, float32, int, int32, int64:
		return KindNumber
	default:
		return KindMixed
	}
}

// MarshalJSON encodes missing values as null.
func (value Value) MarshalJSON() ([]byte, error) {
	if !value.present {
		return []byte("null"), nil
	}
	return json.Marshal(value.data)
}
