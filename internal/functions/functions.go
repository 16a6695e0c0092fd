// Package functions implements the LLM functions a query engine calls:
// llm_complete, llm_complete_json, llm_embedding, llm_reduce, llm_max and
// llm_min. Arguments and results are JSON values.
package functions

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/model"
	"github.com/flemzord/tabllm/internal/prompt"
	"github.com/flemzord/tabllm/internal/reduce"
	"github.com/flemzord/tabllm/internal/telemetry"
	"github.com/flemzord/tabllm/internal/tokenizer"
)

// Function names.
const (
	Complete     = "llm_complete"
	CompleteJSON = "llm_complete_json"
	Embedding    = "llm_embedding"
	Reduce       = "llm_reduce"
	Max          = "llm_max"
	Min          = "llm_min"
)

// ModelResolver binds model details to a gateway. *model.Resolver
// satisfies it.
type ModelResolver interface {
	Resolve(ctx context.Context, raw json.RawMessage, providerOverride string) (*model.Gateway, error)
	ResolveEmbedding(ctx context.Context, name, providerOverride string) (*model.Gateway, error)
}

// Config tunes the engine.
type Config struct {
	// Workers caps concurrent model calls within one function call.
	// Default: 4.
	Workers int `yaml:"workers"`

	// EmbeddingBatchSize is the number of inputs per embeddings request.
	// Default: 64.
	EmbeddingBatchSize int `yaml:"embedding_batch_size"`
}

func (c *Config) defaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.EmbeddingBatchSize <= 0 {
		c.EmbeddingBatchSize = 64
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option { return func(e *Engine) { e.metrics = m } }

type handler func(ctx context.Context, args []json.RawMessage) (json.RawMessage, error)

// Engine validates function arguments, resolves models and prompts, and
// runs the calls. It is safe for concurrent use.
type Engine struct {
	models  ModelResolver
	prompts prompt.Lookup
	counter tokenizer.Counter
	reducer *reduce.Engine
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	funcs   map[string]handler
}

// New creates an engine.
func New(models ModelResolver, prompts prompt.Lookup, counter tokenizer.Counter, cfg Config, opts ...Option) *Engine {
	cfg.defaults()
	e := &Engine{
		models:  models,
		prompts: prompts,
		counter: counter,
		cfg:     cfg,
		tracer:  telemetry.Tracer("functions"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	e.reducer = reduce.New(counter, reduce.WithLogger(e.logger), reduce.WithMetrics(e.metrics))
	e.funcs = map[string]handler{
		Complete: func(ctx context.Context, a []json.RawMessage) (json.RawMessage, error) {
			return e.complete(ctx, Complete, a, false)
		},
		CompleteJSON: func(ctx context.Context, a []json.RawMessage) (json.RawMessage, error) {
			return e.complete(ctx, CompleteJSON, a, true)
		},
		Embedding: e.embedding,
		Reduce: func(ctx context.Context, a []json.RawMessage) (json.RawMessage, error) {
			return e.aggregate(ctx, Reduce, a, reduce.Summarize{})
		},
		Max: func(ctx context.Context, a []json.RawMessage) (json.RawMessage, error) {
			return e.aggregate(ctx, Max, a, reduce.Rank{})
		},
		Min: func(ctx context.Context, a []json.RawMessage) (json.RawMessage, error) {
			return e.aggregate(ctx, Min, a, reduce.Rank{Least: true})
		},
	}
	return e
}

// Names returns the function names, sorted.
func (e *Engine) Names() []string {
	names := make([]string, 0, len(e.funcs))
	for n := range e.funcs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Call runs the named function.
func (e *Engine) Call(ctx context.Context, name string, args []json.RawMessage) (out json.RawMessage, err error) {
	fn, ok := e.funcs[name]
	if !ok {
		return nil, fault.Validationf("unknown function %q", name)
	}

	ctx, span := e.tracer.Start(ctx, "function."+name, trace.WithAttributes(
		attribute.String("function", name),
		attribute.Int("args", len(args)),
	))
	start := time.Now()
	defer func() {
		outcome := telemetry.OutcomeOK
		if err != nil {
			outcome = fault.Kind(err)
			e.logger.Warn("function call failed", "function", name, "kind", outcome, "error", err)
		} else {
			e.logger.Debug("function call", "function", name, "elapsed", time.Since(start))
		}
		e.metrics.CountFunctionCall(name, outcome)
		telemetry.EndSpan(span, err)
	}()

	return fn(ctx, args)
}

// ServiceName is the AppContext service name the engine registers under.
const ServiceName = "functions.engine"
