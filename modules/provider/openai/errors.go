package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/flemzord/tabllm/internal/provider"
)

// errQuota is returned when the account has no credit left. It is not a
// rate limit: waiting does not help.
var errQuota = errors.New("openai: quota exhausted")

// apiFailure is the decoded form of a non-2xx response.
type apiFailure struct {
	status int
	code   string
	msg    string
}

func decodeFailure(status int, body []byte) apiFailure {
	f := apiFailure{status: status, msg: strings.TrimSpace(string(body))}
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		f.msg = apiErr.Error.Message
		f.code = apiErr.Error.Code
		if f.code == "" {
			f.code = apiErr.Error.Type
		}
	}
	return f
}

func (f apiFailure) contextLength() bool {
	return f.code == "context_length_exceeded" ||
		strings.Contains(strings.ToLower(f.msg), "context_length") ||
		strings.Contains(f.msg, "maximum context length")
}

// mapHTTPError returns nil for 2xx statuses and otherwise the provider
// sentinel matching the failure.
func mapHTTPError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	f := decodeFailure(status, body)

	var sentinel error
	switch {
	case status == http.StatusTooManyRequests && f.code == "insufficient_quota":
		sentinel = errQuota
	case status == http.StatusTooManyRequests:
		sentinel = provider.ErrRateLimit
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		sentinel = provider.ErrAuth
	case status == http.StatusBadRequest && f.contextLength():
		sentinel = provider.ErrContextLength
	case status >= 500:
		sentinel = provider.ErrProviderDown
	default:
		return fmt.Errorf("openai: HTTP %d: %s", status, f.msg)
	}
	return fmt.Errorf("%w: %s", sentinel, f.msg)
}

// mapConnectionError classifies transport failures. Cancellation and
// deadlines are returned as they are so callers can tell them apart.
func mapConnectionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("openai: %w", err)
}
