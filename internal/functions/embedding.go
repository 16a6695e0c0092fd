package functions

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/flemzord/tabllm/internal/fault"
)

// embedding implements llm_embedding:
//
//	(rows, model_name)
//	(rows, model_name, settings)
//
// Each row's values are joined into one input text. A single row object
// yields one vector, an array yields one vector per row.
func (e *Engine) embedding(ctx context.Context, args []json.RawMessage) (json.RawMessage, error) {
	const fn = Embedding
	if err := checkArity(fn, args, 2, 3); err != nil {
		return nil, err
	}
	rs, single, err := parseRows(fn, args[0])
	if err != nil {
		return nil, err
	}
	var name string
	if err := json.Unmarshal(args[1], &name); err != nil || name == "" {
		return nil, fault.Validationf("%s: model name must be a non-empty string", fn)
	}
	var s settings
	if len(args) > 2 {
		if s, err = parseSettings(fn, args[2], settingBatchSize, settingProvider); err != nil {
			return nil, err
		}
	}

	gw, err := e.models.ResolveEmbedding(ctx, name, s.Provider)
	if err != nil {
		return nil, err
	}

	inputs := make([]string, len(rs))
	for i, r := range rs {
		inputs[i] = r.Text()
	}

	size := e.cfg.EmbeddingBatchSize
	if s.BatchSize > 0 {
		size = s.BatchSize
	}

	vectors := make([][]float64, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for start := 0; start < len(inputs); start += size {
		end := min(start+size, len(inputs))
		g.Go(func() error {
			e.metrics.ObserveBatch(fn, end-start, false)
			out, err := gw.Embed(gctx, inputs[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 1; i < len(vectors); i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return nil, fault.Invocationf("%s: inconsistent embedding dimensions %d and %d", fn, len(vectors[0]), len(vectors[i]))
		}
	}

	var out []byte
	if single {
		out, err = json.Marshal(vectors[0])
	} else {
		out, err = json.Marshal(vectors)
	}
	if err != nil {
		return nil, fault.Invocation(fmt.Errorf("%s: encode vectors: %w", fn, err))
	}
	return out, nil
}
