package reduce

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/prompt"
	"github.com/flemzord/tabllm/internal/rows"
)

// OutputField is the key a summarize answer carries its result under.
const OutputField = "output"

// Summarize merges rows into a free-form answer. The model replies
// {"output": value}; the carry is a one-column row holding that value.
type Summarize struct{}

var _ Strategy = Summarize{}

func (Summarize) Name() string { return "summarize" }

func (Summarize) Template() string { return prompt.Template(prompt.KindReduce) }

func (Summarize) Prepare(in []rows.Row) []rows.Row { return in }

func (Summarize) Fold(answer json.RawMessage, _ []rows.Row) (rows.Row, error) {
	fields, err := object(answer)
	if err != nil {
		return rows.Row{}, err
	}
	v, ok := fields[OutputField]
	if !ok {
		return rows.Row{}, fault.Invocationf("model answer has no %q field: %s", OutputField, answer)
	}
	return rows.New(rows.Field{Name: OutputField, Value: v}), nil
}

func (Summarize) Result(carry rows.Row, _ []rows.Row) (json.RawMessage, error) {
	v, _ := carry.Get(OutputField)
	return v, nil
}

// IDField tags each row with its input index for ranking. It is kept
// apart from ordinary column names so a caller's own "id" column reaches
// the prompt unchanged.
const IDField = "_rank_id"

// SelectedField is the key a rank answer names the chosen id under.
const SelectedField = "selected"

// Rank selects the single most (or least) relevant row. Rows are tagged
// with their input index; the model replies {"selected": id} and the
// selected row is carried into the next round.
type Rank struct {
	// Least selects the least relevant row instead of the most relevant.
	Least bool
}

var _ Strategy = Rank{}

func (r Rank) Name() string {
	if r.Least {
		return "rank_min"
	}
	return "rank_max"
}

func (r Rank) Template() string {
	if r.Least {
		return prompt.Template(prompt.KindRankMin)
	}
	return prompt.Template(prompt.KindRankMax)
}

func (Rank) Prepare(in []rows.Row) []rows.Row {
	out := make([]rows.Row, len(in))
	for i, row := range in {
		out[i] = row.Tagged(IDField, json.RawMessage(strconv.Itoa(i)))
	}
	return out
}

func (Rank) Fold(answer json.RawMessage, batch []rows.Row) (rows.Row, error) {
	fields, err := object(answer)
	if err != nil {
		return rows.Row{}, err
	}
	raw, ok := fields[SelectedField]
	if !ok {
		return rows.Row{}, fault.Invocationf("model answer has no %q field: %s", SelectedField, answer)
	}
	id, err := parseID(raw)
	if err != nil {
		return rows.Row{}, fault.Invocationf("model selected an invalid id %s", raw)
	}
	for _, row := range batch {
		if v, _ := row.Get(IDField); string(v) == strconv.Itoa(id) {
			return row, nil
		}
	}
	return rows.Row{}, fault.Invocationf("model selected id %d which is not in the batch", id)
}

func (Rank) Result(carry rows.Row, in []rows.Row) (json.RawMessage, error) {
	raw, _ := carry.Get(IDField)
	id, err := parseID(raw)
	if err != nil || id < 0 || id >= len(in) {
		return nil, fault.Invocationf("selected id %s is out of range", raw)
	}
	return json.Marshal(in[id])
}

func object(answer json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(answer, &fields); err != nil || fields == nil {
		return nil, fault.Invocationf("model answer is not a JSON object: %s", answer)
	}
	return fields, nil
}

// parseID accepts 3, 3.0 and "3".
func parseID(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strconv.Atoi(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, strconv.ErrSyntax
	}
	return int(f), nil
}
