package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/provider"
)

// fakeCaller records calls and answers with a fixed result or error.
type fakeCaller struct {
	mu     sync.Mutex
	calls  []string
	result json.RawMessage
	err    error
}

func (c *fakeCaller) Call(_ context.Context, name string, _ []json.RawMessage) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	if c.err != nil {
		return nil, c.err
	}
	if name == "nope" {
		return nil, fault.Validationf("unknown function %q", name)
	}
	return c.result, nil
}

func (c *fakeCaller) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeHealth map[string]provider.HealthStatus

func (f fakeHealth) Report() map[string]provider.HealthStatus { return f }

// do sends a request to h and returns the recorded response.
func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}
