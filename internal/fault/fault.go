// Package fault defines the error categories every tabllm operation reports:
// validation, configuration and invocation failures.
package fault

import (
	"errors"
	"fmt"
)

// Sentinel categories. Match them with errors.Is.
var (
	// ErrValidation reports a malformed call: bad arity, wrong argument
	// shape, missing required field. No model call has been made.
	ErrValidation = errors.New("validation error")

	// ErrConfig reports a configuration problem: unknown model or prompt,
	// unsupported provider, fixed prompt larger than the context window.
	ErrConfig = errors.New("configuration error")

	// ErrInvocation reports a failed model call, including timeouts and
	// responses that do not have the expected shape.
	ErrInvocation = errors.New("model invocation failed")
)

// Validationf returns an ErrValidation error with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Configf returns an ErrConfig error with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// Invocationf returns an ErrInvocation error with a formatted message.
func Invocationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvocation, fmt.Sprintf(format, args...))
}

// Invocation wraps err as an invocation failure while keeping err in the
// chain. Errors already in a category are returned unchanged.
func Invocation(err error) error {
	if err == nil || Categorized(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInvocation, err)
}

// Categorized reports whether err already belongs to one of the categories.
func Categorized(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConfig) || errors.Is(err, ErrInvocation)
}

// Kind returns a short label for the category of err: "validation",
// "config", "invocation" or "internal".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrInvocation):
		return "invocation"
	default:
		return "internal"
	}
}
