// Package model resolves model configurations and invokes them through
// the registered providers.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/store"
)

// DefaultTemperature applies when neither the caller nor the stored record
// sets a temperature.
const DefaultTemperature = 0.5

// Config is a fully resolved model configuration. It is immutable once
// returned by a Resolver.
type Config struct {
	Name            string  `json:"model_name"`
	Model           string  `json:"model"`
	Provider        string  `json:"provider"`
	Secret          string  `json:"-"`
	ContextWindow   int     `json:"context_window"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	Temperature     float64 `json:"temperature"`
}

// Details are the fields a caller may set explicitly. Nil fields fall back
// to the stored record.
type Details struct {
	Name            string   `json:"model_name"`
	Model           *string  `json:"model,omitempty"`
	Provider        *string  `json:"provider,omitempty"`
	ContextWindow   *int     `json:"context_window,omitempty"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

// ParseDetails decodes a model-details JSON object. Unknown keys and a
// missing model_name are validation errors.
func ParseDetails(raw json.RawMessage) (Details, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Details{}, fault.Validationf("model details must be a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var d Details
	if err := dec.Decode(&d); err != nil {
		return Details{}, fault.Validationf("model details: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Details{}, fault.Validationf("model details: trailing data")
	}
	if d.Name == "" {
		return Details{}, fault.Validationf("`model_name` is required in model details")
	}
	return d, nil
}

// Merge overlays explicit details on a stored record. Explicit fields win.
func Merge(stored store.Model, d Details) Config {
	cfg := Config{
		Name:            d.Name,
		Model:           stored.Model,
		Provider:        stored.Provider,
		ContextWindow:   stored.ContextWindow,
		MaxOutputTokens: stored.MaxOutputTokens,
		Temperature:     DefaultTemperature,
	}
	if d.Model != nil {
		cfg.Model = *d.Model
	}
	if d.Provider != nil {
		cfg.Provider = *d.Provider
	}
	if d.ContextWindow != nil {
		cfg.ContextWindow = *d.ContextWindow
	}
	if d.MaxOutputTokens != nil {
		cfg.MaxOutputTokens = *d.MaxOutputTokens
	}
	if d.Temperature != nil {
		cfg.Temperature = *d.Temperature
	}
	return cfg
}

// Validate checks the resolved values.
func (c Config) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("model is empty"))
	}
	if c.Provider == "" {
		errs = append(errs, errors.New("provider is empty"))
	}
	if c.ContextWindow <= 0 {
		errs = append(errs, fmt.Errorf("context_window must be positive, got %d", c.ContextWindow))
	}
	if c.MaxOutputTokens <= 0 {
		errs = append(errs, fmt.Errorf("max_output_tokens must be positive, got %d", c.MaxOutputTokens))
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 1], got %g", c.Temperature))
	}
	if err := errors.Join(errs...); err != nil {
		return fault.Validationf("model %q: %v", c.Name, err)
	}
	return nil
}
