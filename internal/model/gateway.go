package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/provider"
	"github.com/flemzord/tabllm/internal/telemetry"
)

// Gateway invokes one resolved model. It is safe for concurrent use.
type Gateway struct {
	cfg   Config
	entry *provider.Entry
	opts  Options
	log   *slog.Logger
}

func newGateway(cfg Config, entry *provider.Entry, opts Options) *Gateway {
	return &Gateway{
		cfg:   cfg,
		entry: entry,
		opts:  opts,
		log:   opts.Logger.With("provider", cfg.Provider, "model", cfg.Model),
	}
}

// NewGateway binds cfg to a registry entry directly, bypassing resolution.
func NewGateway(cfg Config, entry *provider.Entry, opts Options) *Gateway {
	opts.defaults()
	return newGateway(cfg, entry, opts)
}

// Config returns the resolved configuration.
func (g *Gateway) Config() Config {
	return g.cfg
}

// Complete sends prompt to the model. With expectJSON the answer must be a
// JSON object, optionally wrapped in a Markdown code fence; otherwise the
// text is returned as a JSON string.
func (g *Gateway) Complete(ctx context.Context, prompt string, expectJSON bool) (out json.RawMessage, err error) {
	ctx, span := g.opts.Tracer.Start(ctx, "model.complete", trace.WithAttributes(
		attribute.String("provider", g.cfg.Provider),
		attribute.String("model", g.cfg.Model),
		attribute.Bool("json", expectJSON),
		attribute.Int("prompt.bytes", len(prompt)),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	temp := g.cfg.Temperature
	req := provider.CompletionRequest{
		Model:       g.cfg.Model,
		Prompt:      prompt,
		MaxTokens:   g.cfg.MaxOutputTokens,
		Temperature: &temp,
		JSONMode:    expectJSON,
		APIKey:      g.cfg.Secret,
	}

	resp, err := invoke(ctx, g, "complete", func(ctx context.Context) (provider.CompletionResponse, error) {
		return g.entry.Provider.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	g.opts.Metrics.AddTokens(g.cfg.Provider, g.cfg.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if !expectJSON {
		return json.Marshal(strings.TrimSpace(resp.Content))
	}
	return DecodeObject(resp.Content)
}

// Embed returns one vector per input, in input order. Every vector must have
// the same dimension.
func (g *Gateway) Embed(ctx context.Context, inputs []string) (out [][]float64, err error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	ctx, span := g.opts.Tracer.Start(ctx, "model.embed", trace.WithAttributes(
		attribute.String("provider", g.cfg.Provider),
		attribute.String("model", g.cfg.Model),
		attribute.Int("inputs", len(inputs)),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	req := provider.EmbeddingRequest{Model: g.cfg.Model, Inputs: inputs, APIKey: g.cfg.Secret}
	resp, err := invoke(ctx, g, "embed", func(ctx context.Context) (provider.EmbeddingResponse, error) {
		return g.entry.Provider.Embed(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	g.opts.Metrics.AddTokens(g.cfg.Provider, g.cfg.Model, resp.Usage.PromptTokens, 0)

	if len(resp.Vectors) != len(inputs) {
		return nil, fault.Invocationf("provider %q returned %d embeddings for %d inputs",
			g.cfg.Provider, len(resp.Vectors), len(inputs))
	}
	dim := len(resp.Vectors[0])
	for i, v := range resp.Vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fault.Invocationf("provider %q returned embedding %d with dimension %d, want %d",
				g.cfg.Provider, i, len(v), dim)
		}
	}
	return resp.Vectors, nil
}

// invoke runs call with the per-call timeout, retrying transient provider
// errors with exponential backoff and feeding the provider health tracker.
func invoke[T any](ctx context.Context, g *Gateway, op string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	name := g.cfg.Provider
	health := g.entry.Health

	// A cooling-down provider is still tried; the backoff below spaces the
	// attempts. A dead provider fails fast until its recovery window opens.
	if health.State() == provider.StateDead && !health.IsAvailable() {
		g.opts.Metrics.ObserveModelCall(name, g.cfg.Model, op, telemetry.OutcomeError, 0)
		return zero, fault.Invocation(fmt.Errorf("provider %q: %w (marked dead)", name, provider.ErrProviderDown))
	}

	start := time.Now()
	attempt := 0
	// One failed call counts once against the provider, however many
	// attempts it took.
	unhealthy := false
	operation := func() (T, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		defer cancel()

		v, err := call(callCtx)
		if err == nil {
			health.RecordSuccess()
			return v, nil
		}

		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			unhealthy = true
			return zero, backoff.Permanent(fmt.Errorf("call timed out after %s: %w", g.opts.CallTimeout, err))
		}
		if provider.IsRetryable(err) {
			unhealthy = true
			g.log.Warn("model call failed, retrying", "op", op, "attempt", attempt, "error", err)
			return zero, err
		}
		unhealthy = false
		return zero, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.opts.InitialBackoff

	v, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(g.opts.MaxAttempts)),
	)
	elapsed := time.Since(start)
	if err != nil {
		if unhealthy {
			health.RecordFailure()
		}
		g.opts.Metrics.ObserveModelCall(name, g.cfg.Model, op, telemetry.OutcomeError, elapsed)
		g.log.Error("model call failed", "op", op, "attempts", attempt, "elapsed", elapsed, "error", err)
		return zero, fault.Invocation(fmt.Errorf("provider %q: %w", name, err))
	}

	g.opts.Metrics.ObserveModelCall(name, g.cfg.Model, op, telemetry.OutcomeOK, elapsed)
	g.log.Debug("model call", "op", op, "attempts", attempt, "elapsed", elapsed)
	return v, nil
}

// DecodeObject extracts a JSON object from model output, tolerating a
// surrounding Markdown code fence.
func DecodeObject(content string) (json.RawMessage, error) {
	text := StripCodeFence(content)
	raw := []byte(text)
	if len(raw) == 0 || raw[0] != '{' || !json.Valid(raw) {
		return nil, fault.Invocationf("model did not return a JSON object: %s", abbreviate(text, 200))
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fault.Invocationf("model output: %v", err)
	}
	return buf.Bytes(), nil
}

// StripCodeFence removes a ```lang ... ``` wrapper and surrounding space.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
