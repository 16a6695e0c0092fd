package functions

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/tabllm/internal/batch"
	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/model"
	"github.com/flemzord/tabllm/internal/prompt"
	"github.com/flemzord/tabllm/internal/rows"
)

// tuplesField holds the per-row answers of a batched completion.
const tuplesField = "tuples"

type completeCall struct {
	fn       string
	jsonMode bool
	prompt   prompt.Details
	rows     []rows.Row
	single   bool
	hasRows  bool
	settings settings
	model    *model.Gateway
}

// complete implements llm_complete and llm_complete_json:
//
//	(model, prompt)
//	(model, prompt, rows)
//	(model, prompt, rows, settings)
//
// Without rows the prompt is sent as is and one value comes back. A single
// row object yields one value. An array yields an array of values, one per
// row, in input order.
func (e *Engine) complete(ctx context.Context, fn string, args []json.RawMessage, jsonMode bool) (json.RawMessage, error) {
	c, err := e.prepareComplete(ctx, fn, args, jsonMode)
	if err != nil {
		return nil, err
	}

	switch {
	case !c.hasRows:
		text := c.prompt.Text
		if jsonMode {
			text += prompt.JSONSuffix
		}
		return c.model.Complete(ctx, text, jsonMode)
	case c.single:
		kind := prompt.KindComplete
		if jsonMode {
			kind = prompt.KindCompleteJSON
		}
		e.metrics.ObserveBatch(fn, 1, false)
		return c.model.Complete(ctx, prompt.Render(prompt.Template(kind), c.prompt.Text, c.rows), jsonMode)
	}

	results, err := e.completeBatches(ctx, c)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(results)
	if err != nil {
		return nil, fault.Invocationf("%s: encode results: %v", fn, err)
	}
	return out, nil
}

func (e *Engine) prepareComplete(ctx context.Context, fn string, args []json.RawMessage, jsonMode bool) (*completeCall, error) {
	if err := checkArity(fn, args, 2, 4); err != nil {
		return nil, err
	}
	if err := requireObject(fn, "model details", args[0]); err != nil {
		return nil, err
	}
	if err := requireObject(fn, "prompt details", args[1]); err != nil {
		return nil, err
	}

	c := &completeCall{fn: fn, jsonMode: jsonMode}
	if len(args) > 2 && !isNull(args[2]) {
		rs, single, err := parseRows(fn, args[2])
		if err != nil {
			return nil, err
		}
		c.rows, c.single, c.hasRows = rs, single, true
	}
	if len(args) > 3 {
		s, err := parseSettings(fn, args[3], settingBatchSize, settingProvider)
		if err != nil {
			return nil, err
		}
		c.settings = s
	}

	p, err := prompt.ResolvePromptDetails(ctx, args[1], e.prompts)
	if err != nil {
		return nil, err
	}
	c.prompt = p

	gw, err := e.models.Resolve(ctx, args[0], c.settings.Provider)
	if err != nil {
		return nil, err
	}
	c.model = gw
	return c, nil
}

// completeBatches packs the rows under the model's context window, sends the
// batches concurrently and slots each answer back at its row index.
func (e *Engine) completeBatches(ctx context.Context, c *completeCall) ([]json.RawMessage, error) {
	results := make([]json.RawMessage, len(c.rows))
	if len(c.rows) == 0 {
		return results, nil
	}

	kind := prompt.KindCompleteBatch
	if c.jsonMode {
		kind = prompt.KindCompleteJSONBatch
	}
	tmpl := prompt.Template(kind)
	fixed := e.counter.CountTokens(tmpl) + e.counter.CountTokens(c.prompt.Text)

	planner := batch.NewPlanner(e.counter, batch.WithMaxRows(c.settings.BatchSize))
	batches, err := planner.Plan(c.rows, fixed, c.model.Config().ContextWindow)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("batches planned", "function", c.fn, "rows", len(c.rows), "batches", len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for _, b := range batches {
		g.Go(func() error {
			e.metrics.ObserveBatch(c.fn, len(b.Rows), b.Oversized)
			if b.Oversized {
				e.logger.Warn("batch exceeds token budget", "function", c.fn, "start", b.Start, "tokens", b.Tokens)
			}
			answer, err := c.model.Complete(gctx, prompt.Render(tmpl, c.prompt.Text, b.Rows), true)
			if err != nil {
				return err
			}
			items, err := tuples(answer, len(b.Rows))
			if err != nil {
				return fault.Invocation(fmt.Errorf("%s: rows %d-%d: %w", c.fn, b.Start, b.End()-1, err))
			}
			for i, item := range items {
				results[b.Start+i] = scalar(item, c.jsonMode)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// tuples extracts exactly want answers from a batched completion.
func tuples(answer json.RawMessage, want int) ([]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(answer, &obj); err != nil {
		return nil, fmt.Errorf("batched answer is not an object: %w", err)
	}
	raw, ok := obj[tuplesField]
	if !ok {
		return nil, fmt.Errorf("batched answer has no %q field", tuplesField)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%q is not an array: %w", tuplesField, err)
	}
	if len(items) != want {
		return nil, fmt.Errorf("model returned %d answers for %d rows", len(items), want)
	}
	return items, nil
}

// scalar shapes one batched answer like a single-row answer would be: a
// JSON string for text completions, the value itself for JSON completions.
func scalar(item json.RawMessage, jsonMode bool) json.RawMessage {
	if jsonMode {
		return item
	}
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return item
	}
	b, _ := json.Marshal(string(item))
	return b
}
