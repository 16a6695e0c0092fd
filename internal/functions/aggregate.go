package functions

import (
	"context"
	"encoding/json"

	"github.com/flemzord/tabllm/internal/prompt"
	"github.com/flemzord/tabllm/internal/reduce"
)

// aggregate implements llm_reduce, llm_max and llm_min:
//
//	(model, prompt, rows)
//
// rows may be a single object, treated as a one-row group.
func (e *Engine) aggregate(ctx context.Context, fn string, args []json.RawMessage, s reduce.Strategy) (json.RawMessage, error) {
	if err := checkArity(fn, args, 3, 3); err != nil {
		return nil, err
	}
	if err := requireObject(fn, "model details", args[0]); err != nil {
		return nil, err
	}
	if err := requireObject(fn, "prompt details", args[1]); err != nil {
		return nil, err
	}
	rs, _, err := parseRows(fn, args[2])
	if err != nil {
		return nil, err
	}

	p, err := prompt.ResolvePromptDetails(ctx, args[1], e.prompts)
	if err != nil {
		return nil, err
	}
	gw, err := e.models.Resolve(ctx, args[0], "")
	if err != nil {
		return nil, err
	}
	return e.reducer.Run(ctx, gw, gw.Config().ContextWindow, p.Text, rs, s)
}
