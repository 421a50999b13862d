package table

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnexpectedShape is returned when a response body is neither an array of
// objects nor an object carrying a "records" array.
var ErrUnexpectedShape = errors.New("response is not a list of records")

// UnmarshalJSON decodes a JSON object keeping its keys in document order.
// Numbers decode as json.Number so integer codes survive unchanged.
func (record *Record) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*record = nil
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record: expected object, got %v", token)
	}

	fields := make(Record, 0)
	positions := make(map[string]int)
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return err
		}
		key, ok := keyToken.(string)
		if !ok {
			return fmt.Errorf("record: expected key, got %v", keyToken)
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		if position, seen := positions[key]; seen {
			fields[position].Value = value
			continue
		}
		positions[key] = len(fields)
		fields = append(fields, Field{Name: key, Value: value})
	}
	if _, err := decoder.Token(); err != nil {
		return err
	}

	*record = fields
	return nil
}

// DecodeRecords parses a service response body. Both a bare array of objects
// and an envelope object with a "records" array are accepted.
func DecodeRecords(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrUnexpectedShape
	}

	switch trimmed[0] {
	case '[':
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return records, nil
	case '{':
		var envelope struct {
			Records *[]Record `json:"records"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		if envelope.Records == nil {
			return nil, fmt.Errorf("%w: object has no records field", ErrUnexpectedShape)
		}
		return *envelope.Records, nil
	default:
		return nil, ErrUnexpectedShape
	}
}
