package rows

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var rowType = reflect.TypeOf(Row{})

// ErrNotObject is returned when a value that should be a row is not a JSON
// object.
var ErrNotObject = errors.New("rows: value is not a JSON object")

// Decode reads rows from a JSON value: a single object yields one row, an
// array must contain only objects. The second result reports whether the
// input was a single object rather than an array.
func Decode(raw json.RawMessage) (rows []Row, single bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, ErrNotObject
	}

	switch raw[0] {
	case '{':
		var r Row
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, false, err
		}
		return []Row{r}, true, nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, false, err
		}
		out := make([]Row, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				return nil, false, fmt.Errorf("%w: element %d is %s", ErrNotObject, i, describe(item))
			}
			if err := json.Unmarshal(item, &out[i]); err != nil {
				return nil, false, fmt.Errorf("rows: element %d: %w", i, err)
			}
		}
		return out, false, nil
	default:
		return nil, false, fmt.Errorf("%w: got %s", ErrNotObject, describe(raw))
	}
}

// Parse reads rows from a document holding either a JSON value accepted by
// Decode or newline-delimited JSON objects (one row per non-blank line).
func Parse(data []byte) ([]Row, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if json.Valid(data) {
		rows, _, err := Decode(data)
		return rows, err
	}

	var out []Row
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var r Row
		if err := json.Unmarshal(text, &r); err != nil {
			return nil, fmt.Errorf("rows: line %d: %w", line, err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// describe names the JSON kind of raw for error messages.
func describe(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "empty input"
	}
	switch raw[0] {
	case '{':
		return "an object"
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	case 'n':
		return "null"
	default:
		return "a number"
	}
}
