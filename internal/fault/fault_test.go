package fault

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{Validationf("argument %d must be an object", 2), "validation"},
		{Configf("model %q not found", "gpt"), "config"},
		{Invocationf("timeout"), "invocation"},
		{Invocation(context.DeadlineExceeded), "invocation"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestInvocation_KeepsCauseAndCategory(t *testing.T) {
	err := Invocation(context.DeadlineExceeded)
	if !errors.Is(err, ErrInvocation) {
		t.Error("expected ErrInvocation in chain")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected cause in chain")
	}

	cfg := Configf("unsupported provider %q", "x")
	if got := Invocation(cfg); got != cfg {
		t.Errorf("categorized error should pass through, got %v", got)
	}
	if Invocation(nil) != nil {
		t.Error("Invocation(nil) should be nil")
	}
}

func TestValidationf_Message(t *testing.T) {
	err := Validationf("argument %q is required", "model_name")
	if !strings.Contains(err.Error(), `"model_name"`) {
		t.Errorf("message should name the argument: %v", err)
	}
}
