package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/store"
)

// Lookup resolves stored prompts. store.Repository satisfies it.
type Lookup interface {
	ResolvePrompt(ctx context.Context, name string, version *int) (store.Prompt, error)
}

// Details is a resolved prompt argument.
type Details struct {
	// Name is empty for literal prompts.
	Name string
	// Version is the stored version that was selected, 0 for literals.
	Version int
	// Text is the prompt itself.
	Text string
}

const detailsShape = "prompt details must hold either \"prompt\" or \"prompt_name\" with an optional \"version\""

// ResolvePromptDetails turns a prompt-details JSON object into prompt text.
// {"prompt": "..."} is returned as-is without a lookup. {"prompt_name": n}
// selects the newest stored version of n; {"prompt_name": n, "version": v}
// selects exactly v.
func ResolvePromptDetails(ctx context.Context, raw json.RawMessage, lookup Lookup) (Details, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return Details{}, err
	}

	_, hasPrompt := fields["prompt"]
	_, hasName := fields["prompt_name"]

	switch {
	case hasPrompt && hasName:
		return Details{}, fault.Validationf("%s, not both", detailsShape)
	case hasPrompt:
		if len(fields) > 1 {
			return Details{}, fault.Validationf("%s; unexpected key %q", detailsShape, firstExtra(fields, "prompt"))
		}
		text, err := stringField(fields, "prompt")
		if err != nil {
			return Details{}, err
		}
		return Details{Text: text}, nil
	case hasName:
		if extra := firstExtra(fields, "prompt_name", "version"); extra != "" {
			return Details{}, fault.Validationf("%s; unexpected key %q", detailsShape, extra)
		}
		return resolveNamed(ctx, fields, lookup)
	default:
		return Details{}, fault.Validationf("%s", detailsShape)
	}
}

func resolveNamed(ctx context.Context, fields map[string]json.RawMessage, lookup Lookup) (Details, error) {
	name, err := stringField(fields, "prompt_name")
	if err != nil {
		return Details{}, err
	}
	if name == "" {
		return Details{}, fault.Validationf("\"prompt_name\" must not be empty")
	}

	var version *int
	if raw, ok := fields["version"]; ok {
		v, err := parseVersion(raw)
		if err != nil {
			return Details{}, err
		}
		version = &v
	}

	if lookup == nil {
		return Details{}, fault.Configf("no prompt store configured to resolve prompt `%s`", name)
	}

	p, err := lookup.ResolvePrompt(ctx, name, version)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if version != nil {
				return Details{}, fault.Configf("prompt `%s` with version %d not found", name, *version)
			}
			return Details{}, fault.Configf("prompt `%s` not found", name)
		}
		return Details{}, fmt.Errorf("resolving prompt `%s`: %w", name, err)
	}

	return Details{Name: p.Name, Version: p.Version, Text: p.Text}, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fault.Validationf("prompt details must be a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fault.Validationf("prompt details: %v", err)
	}
	return fields, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	var s string
	if err := json.Unmarshal(fields[key], &s); err != nil {
		return "", fault.Validationf("%q must be a string", key)
	}
	return s, nil
}

// parseVersion accepts 2 or "2".
func parseVersion(raw json.RawMessage) (int, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fault.Validationf("\"version\" must be an integer")
	}
	switch t := v.(type) {
	case json.Number:
		n = t
	case string:
		n = json.Number(strings.TrimSpace(t))
	default:
		return 0, fault.Validationf("\"version\" must be an integer")
	}
	version, err := strconv.Atoi(n.String())
	if err != nil || version < 1 {
		return 0, fault.Validationf("\"version\" must be a positive integer, got %s", raw)
	}
	return version, nil
}

// firstExtra returns the alphabetically first key not in allowed.
func firstExtra(fields map[string]json.RawMessage, allowed ...string) string {
	var extra []string
	for k := range fields {
		if !slices.Contains(allowed, k) {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return ""
	}
	slices.Sort(extra)
	return extra[0]
}
