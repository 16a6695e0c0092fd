// Package rows models the tabular input handed to LLM functions: ordered
// column/value records whose column order survives JSON round trips.
package rows

import (
	"bytes"
	"encoding/json"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Field is one column of a row.
type Field struct {
	Name  string
	Value json.RawMessage
}

// Row is an ordered mapping from column name to a JSON value. The zero Row
// is empty and ready to use. Copies share storage; use Clone to detach.
type Row struct {
	m *orderedmap.OrderedMap[string, json.RawMessage]
}

// New builds a row from fields, keeping their order. A repeated name keeps
// its first position and its last value.
func New(fields ...Field) Row {
	var r Row
	for _, f := range fields {
		r.Set(f.Name, f.Value)
	}
	return r
}

// Of builds a single-column row from a Go value. It panics if v cannot be
// marshaled, so it is meant for values the caller controls.
func Of(name string, v any) Row {
	var r Row
	if err := r.SetValue(name, v); err != nil {
		panic(err)
	}
	return r
}

// Set stores value under name. New names are appended after existing
// columns. Valid JSON is compacted so rendering is canonical.
func (r *Row) Set(name string, value json.RawMessage) {
	if r.m == nil {
		r.m = orderedmap.New[string, json.RawMessage]()
	}
	r.m.Set(name, compact(value))
}

// SetValue marshals v and stores it under name.
func (r *Row) SetValue(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Set(name, raw)
	return nil
}

// Len returns the number of columns.
func (r Row) Len() int {
	if r.m == nil {
		return 0
	}
	return r.m.Len()
}

// Get returns the value stored under name.
func (r Row) Get(name string) (json.RawMessage, bool) {
	if r.m == nil {
		return nil, false
	}
	return r.m.Get(name)
}

// Each calls fn for every column in order until fn returns false.
func (r Row) Each(fn func(name string, value json.RawMessage) bool) {
	if r.m == nil {
		return
	}
	for p := r.m.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// Columns returns the column names in order.
func (r Row) Columns() []string {
	cols := make([]string, 0, r.Len())
	r.Each(func(name string, _ json.RawMessage) bool {
		cols = append(cols, name)
		return true
	})
	return cols
}

// Fields returns the columns in order.
func (r Row) Fields() []Field {
	out := make([]Field, 0, r.Len())
	r.Each(func(name string, value json.RawMessage) bool {
		out = append(out, Field{Name: name, Value: value})
		return true
	})
	return out
}

// Clone returns a row with its own storage.
func (r Row) Clone() Row {
	return New(r.Fields()...)
}

// Tagged returns a copy of r with name placed as the first column.
// An existing column of the same name is replaced.
func (r Row) Tagged(name string, value json.RawMessage) Row {
	out := New(Field{Name: name, Value: value})
	r.Each(func(n string, v json.RawMessage) bool {
		if n != name {
			out.Set(n, v)
		}
		return true
	})
	return out
}

// Without returns a copy of r minus the named column.
func (r Row) Without(name string) Row {
	var out Row
	r.Each(func(n string, v json.RawMessage) bool {
		if n != name {
			out.Set(n, v)
		}
		return true
	})
	return out
}

// Text joins the row's values with single spaces in column order. String
// values are unquoted; other values keep their JSON text.
func (r Row) Text() string {
	parts := make([]string, 0, r.Len())
	r.Each(func(_ string, value json.RawMessage) bool {
		var s string
		if len(value) > 0 && value[0] == '"' && json.Unmarshal(value, &s) == nil {
			parts = append(parts, s)
		} else {
			parts = append(parts, string(value))
		}
		return true
	})
	return strings.Join(parts, " ")
}

// MarshalJSON encodes the row as a JSON object in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	if r.m == nil {
		return []byte("{}"), nil
	}
	return r.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return &json.UnmarshalTypeError{Value: describe(data), Type: rowType}
	}
	m := orderedmap.New[string, json.RawMessage]()
	if err := m.UnmarshalJSON(data); err != nil {
		return err
	}
	for p := m.Oldest(); p != nil; p = p.Next() {
		p.Value = compact(p.Value)
	}
	r.m = m
	return nil
}

func compact(value json.RawMessage) json.RawMessage {
	if len(value) == 0 {
		return json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return value
	}
	return buf.Bytes()
}
