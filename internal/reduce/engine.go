// Package reduce folds an arbitrarily long row sequence into one answer by
// repeatedly batching rows under the token budget and asking the model to
// merge each batch into the running result.
package reduce

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/tabllm/internal/batch"
	"github.com/flemzord/tabllm/internal/prompt"
	"github.com/flemzord/tabllm/internal/rows"
	"github.com/flemzord/tabllm/internal/telemetry"
	"github.com/flemzord/tabllm/internal/tokenizer"
)

// Completer is the model call the engine needs. *model.Gateway satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string, expectJSON bool) (json.RawMessage, error)
}

// Strategy decides what the model is asked and how its answers fold.
type Strategy interface {
	// Name labels logs and metrics.
	Name() string

	// Template is the prompt template, with the user prompt and tuples
	// sections still open.
	Template() string

	// Prepare maps the caller's rows to the rows the model sees.
	Prepare(in []rows.Row) []rows.Row

	// Fold turns the model answer for a batch into the carried row.
	Fold(answer json.RawMessage, batch []rows.Row) (rows.Row, error)

	// Result turns the final carry into the pass result. in holds the
	// caller's original rows.
	Result(carry rows.Row, in []rows.Row) (json.RawMessage, error)
}

// Engine runs reduction passes. It holds no per-pass state and is safe for
// concurrent use.
type Engine struct {
	counter tokenizer.Counter
	planner *batch.Planner
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// New creates an engine counting tokens with counter.
func New(counter tokenizer.Counter, opts ...Option) *Engine {
	e := &Engine{
		counter: counter,
		planner: batch.NewPlanner(counter),
		tracer:  telemetry.Tracer("reduce"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// state is the bookkeeping of one pass.
type state struct {
	input    []rows.Row
	cursor   int
	carry    rows.Row
	hasCarry bool
	rounds   int
}

// Run folds in into a single result. Each round sends the carried output
// followed by as many unconsumed rows as fit within contextWindow, and the
// answer becomes the next carry. Every round consumes at least one input
// row, so a pass over n rows takes at most n rounds. Empty input returns
// JSON null without calling the model. Any model error aborts the pass.
func (e *Engine) Run(ctx context.Context, m Completer, contextWindow int, userPrompt string, in []rows.Row, s Strategy) (out json.RawMessage, err error) {
	passID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "reduce.pass", trace.WithAttributes(
		attribute.String("strategy", s.Name()),
		attribute.String("pass_id", passID),
		attribute.Int("rows", len(in)),
	))
	defer func() { telemetry.EndSpan(span, err) }()

	tmpl := s.Template()
	fixed := e.counter.CountTokens(tmpl) + e.counter.CountTokens(userPrompt)
	avail, err := batch.Available(fixed, contextWindow)
	if err != nil {
		return nil, err
	}

	st := &state{input: s.Prepare(in)}
	if len(st.input) == 0 {
		return json.RawMessage("null"), nil
	}

	log := e.logger.With("pass_id", passID, "strategy", s.Name())
	log.Debug("reduction started", "rows", len(st.input), "available_tokens", avail)

	b := e.planner.NewBuilder(avail)
	for {
		st.rounds++
		b.Reset()
		if st.hasCarry {
			b.Add(st.carry, true)
		}
		start := st.cursor
		// At least one input row per round keeps the pass moving even when
		// the carry alone fills the budget.
		b.Add(st.input[st.cursor], true)
		st.cursor++
		for st.cursor < len(st.input) && b.Add(st.input[st.cursor], false) {
			st.cursor++
		}

		current := b.Batch(start)
		e.metrics.ObserveBatch(s.Name(), len(current.Rows), current.Oversized)
		if current.Oversized {
			log.Warn("batch exceeds token budget", "round", st.rounds, "tokens", current.Tokens, "available_tokens", avail)
		}

		answer, err := m.Complete(ctx, prompt.Render(tmpl, userPrompt, current.Rows), true)
		if err != nil {
			log.Error("reduction aborted", "round", st.rounds, "error", err)
			return nil, err
		}
		carry, err := s.Fold(answer, current.Rows)
		if err != nil {
			log.Error("reduction aborted", "round", st.rounds, "error", err)
			return nil, err
		}
		st.carry, st.hasCarry = carry, true

		log.Debug("round folded", "round", st.rounds, "rows", len(current.Rows), "consumed", st.cursor)
		if st.cursor >= len(st.input) {
			break
		}
	}

	e.metrics.ObserveReduce(s.Name(), st.rounds)
	span.SetAttributes(attribute.Int("rounds", st.rounds))
	log.Debug("reduction finished", "rounds", st.rounds)
	return s.Result(st.carry, in)
}
