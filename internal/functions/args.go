package functions

import (
	"bytes"
	"encoding/json"
	"slices"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/rows"
)

// Settings keys.
const (
	settingBatchSize = "batch_size"
	settingProvider  = "provider"
)

// settings is the optional last argument of several functions.
type settings struct {
	BatchSize int
	Provider  string
}

func checkArity(fn string, args []json.RawMessage, minArgs, maxArgs int) error {
	if len(args) < minArgs || len(args) > maxArgs {
		if minArgs == maxArgs {
			return fault.Validationf("%s takes %d arguments, got %d", fn, minArgs, len(args))
		}
		return fault.Validationf("%s takes %d to %d arguments, got %d", fn, minArgs, maxArgs, len(args))
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func requireObject(fn, what string, raw json.RawMessage) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return fault.Validationf("%s: %s must be a JSON object", fn, what)
	}
	return nil
}

// parseRows decodes the input-rows argument. An object is one row, an array
// must hold objects only.
func parseRows(fn string, raw json.RawMessage) (rs []rows.Row, single bool, err error) {
	rs, single, err = rows.Decode(raw)
	if err != nil {
		return nil, false, fault.Validationf("%s: input rows must be an object or an array of objects: %v", fn, err)
	}
	return rs, single, nil
}

// parseSettings decodes a settings object, accepting only the given keys.
func parseSettings(fn string, raw json.RawMessage, allowed ...string) (settings, error) {
	var s settings
	if isNull(raw) {
		return s, nil
	}
	if err := requireObject(fn, "settings", raw); err != nil {
		return s, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return s, fault.Validationf("%s: settings: %v", fn, err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if !slices.Contains(allowed, k) {
			return s, fault.Validationf("%s: unknown setting %q", fn, k)
		}
		v := fields[k]
		switch k {
		case settingBatchSize:
			var n int
			if err := json.Unmarshal(v, &n); err != nil || n <= 0 {
				return s, fault.Validationf("%s: setting %q must be a positive integer", fn, k)
			}
			s.BatchSize = n
		case settingProvider:
			if err := json.Unmarshal(v, &s.Provider); err != nil || s.Provider == "" {
				return s, fault.Validationf("%s: setting %q must be a non-empty string", fn, k)
			}
		}
	}
	return s, nil
}
