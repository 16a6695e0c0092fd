package reduce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/rows"
	"github.com/flemzord/tabllm/internal/tokenizer"
)

var (
	tupleRe = regexp.MustCompile(`<tuple>(.*?)</tuple>`)
	colRe   = regexp.MustCompile(`<col>(.*?)</col>`)
)

// tuples extracts the column values of every tuple in a rendered prompt.
func tuples(p string) [][]string {
	var out [][]string
	for _, m := range tupleRe.FindAllStringSubmatch(p, -1) {
		var cols []string
		for _, c := range colRe.FindAllStringSubmatch(m[1], -1) {
			cols = append(cols, c[1])
		}
		out = append(out, cols)
	}
	return out
}

// tupleCounter prices tuples at 10 tokens, headers at 1, anything else at 0.
var tupleCounter = tokenizer.CounterFunc(func(text string) int {
	return 10*strings.Count(text, "<tuple>") + strings.Count(text, "<header>")
})

type fakeModel struct {
	answer  func(prompt string) (string, error)
	prompts []string
}

func (f *fakeModel) Complete(_ context.Context, p string, expectJSON bool) (json.RawMessage, error) {
	if !expectJSON {
		return nil, errors.New("reduction must ask for JSON")
	}
	f.prompts = append(f.prompts, p)
	out, err := f.answer(p)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(out), nil
}

// summing answers with the sum of every value in the batch, carry included.
func summing(p string) (string, error) {
	total := 0
	for _, cols := range tuples(p) {
		for _, c := range cols {
			if c == "null" {
				continue
			}
			n, err := strconv.Atoi(c)
			if err != nil {
				return "", err
			}
			total += n
		}
	}
	return fmt.Sprintf(`{"output": %d}`, total), nil
}

func numberRows(ns ...int) []rows.Row {
	out := make([]rows.Row, len(ns))
	for i, n := range ns {
		out[i] = rows.Of("n", n)
	}
	return out
}

func TestRun_SummarizeConservesRows(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		window     int
		wantRounds int
	}{
		{"single row", 1, 35, 1},
		{"fits in one batch", 3, 35, 1},
		{"several rounds", 10, 35, 5},
		{"one row per round", 4, 12, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := make([]int, tt.n)
			want := 0
			for i := range ns {
				ns[i] = i + 1
				want += i + 1
			}
			m := &fakeModel{answer: summing}

			got, err := New(tupleCounter).Run(context.Background(), m, tt.window, "add them up", numberRows(ns...), Summarize{})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if string(got) != strconv.Itoa(want) {
				t.Errorf("result = %s, want %d", got, want)
			}
			if len(m.prompts) != tt.wantRounds {
				t.Errorf("rounds = %d, want %d", len(m.prompts), tt.wantRounds)
			}
			for i, p := range m.prompts {
				if !strings.Contains(p, "add them up") {
					t.Errorf("round %d prompt lost the user prompt", i)
				}
			}
		})
	}
}

func TestRun_CarryComesFirst(t *testing.T) {
	m := &fakeModel{answer: summing}
	if _, err := New(tupleCounter).Run(context.Background(), m, 35, "q", numberRows(1, 2, 3, 4), Summarize{}); err != nil {
		t.Fatal(err)
	}
	if len(m.prompts) != 2 {
		t.Fatalf("rounds = %d, want 2", len(m.prompts))
	}
	second := tuples(m.prompts[1])
	want := [][]string{{"6", "null"}, {"null", "4"}}
	if fmt.Sprint(second) != fmt.Sprint(want) {
		t.Errorf("second round tuples = %v, want %v (carry, then row 4 under n)", second, want)
	}
	if !strings.Contains(m.prompts[1], "<header><col>output</col><col>n</col></header>") {
		t.Errorf("header should name the carry and row columns:\n%s", m.prompts[1])
	}
}

func TestRun_MixedSchemaRowsStayUnderTheirColumns(t *testing.T) {
	in := []rows.Row{
		rows.New(rows.Field{Name: "name", Value: json.RawMessage(`"Dune"`)}, rows.Field{Name: "year", Value: json.RawMessage(`1965`)}),
		rows.New(rows.Field{Name: "year", Value: json.RawMessage(`1990`)}, rows.Field{Name: "name", Value: json.RawMessage(`"Emma"`)}),
	}
	m := &fakeModel{answer: func(string) (string, error) { return `{"output":"ok"}`, nil }}
	if _, err := New(tupleCounter).Run(context.Background(), m, 100, "q", in, Summarize{}); err != nil {
		t.Fatal(err)
	}
	got := tuples(m.prompts[0])
	want := [][]string{{`"Dune"`, "1965"}, {`"Emma"`, "1990"}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("tuples = %v, want %v", got, want)
	}
}

func TestRun_OversizedCarryStillAdvances(t *testing.T) {
	// The carry alone costs more than the whole budget.
	counter := tokenizer.CounterFunc(func(text string) int {
		if strings.Contains(text, "<col>") && strings.HasPrefix(text, "<tuple>") && strings.Contains(text, "big") {
			return 1000
		}
		return tupleCounter(text)
	})
	m := &fakeModel{answer: func(string) (string, error) { return `{"output":"big"}`, nil }}

	got, err := New(counter).Run(context.Background(), m, 30, "q", numberRows(1, 2, 3, 4, 5), Summarize{})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `"big"` {
		t.Errorf("result = %s", got)
	}
	if len(m.prompts) != 4 {
		t.Errorf("rounds = %d, want 4 (2 rows first, then one per round)", len(m.prompts))
	}
}

func TestRun_EmptyInput(t *testing.T) {
	m := &fakeModel{answer: summing}
	got, err := New(tupleCounter).Run(context.Background(), m, 100, "q", nil, Summarize{})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "null" || len(m.prompts) != 0 {
		t.Errorf("got %s after %d calls, want null without calls", got, len(m.prompts))
	}
}

func TestRun_FixedTokensExceedWindow(t *testing.T) {
	counter := tokenizer.CounterFunc(func(string) int { return 60 })
	m := &fakeModel{answer: summing}
	_, err := New(counter).Run(context.Background(), m, 100, "q", numberRows(1), Summarize{})
	if !errors.Is(err, fault.ErrConfig) {
		t.Errorf("err = %v, want config error", err)
	}
	if len(m.prompts) != 0 {
		t.Error("no call expected")
	}
}

func TestRun_InvocationErrorAborts(t *testing.T) {
	boom := fault.Invocationf("provider exploded")
	calls := 0
	m := &fakeModel{answer: func(p string) (string, error) {
		calls++
		if calls == 2 {
			return "", boom
		}
		return summing(p)
	}}
	_, err := New(tupleCounter).Run(context.Background(), m, 35, "q", numberRows(1, 2, 3, 4, 5, 6, 7, 8, 9), Summarize{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want the pass to stop at 2", calls)
	}
}

func TestSummarize_FoldRequiresOutput(t *testing.T) {
	for _, answer := range []string{`{"result":1}`, `[1]`} {
		if _, err := (Summarize{}).Fold(json.RawMessage(answer), nil); !errors.Is(err, fault.ErrInvocation) {
			t.Errorf("Fold(%s) err = %v, want invocation error", answer, err)
		}
	}
}

// picking selects the tuple with the largest (or smallest) "n".
func picking(least bool) func(string) (string, error) {
	return func(p string) (string, error) {
		bestID, bestN := "", 0
		for i, cols := range tuples(p) {
			n, _ := strconv.Atoi(cols[1])
			if i == 0 || (!least && n > bestN) || (least && n < bestN) {
				bestID, bestN = cols[0], n
			}
		}
		return fmt.Sprintf(`{"selected": %s}`, bestID), nil
	}
}

func TestRun_Rank(t *testing.T) {
	in := numberRows(5, 42, 7, 99, 1, 13, 64)
	tests := []struct {
		least bool
		want  string
	}{
		{false, `{"n":99}`},
		{true, `{"n":1}`},
	}
	for _, tt := range tests {
		t.Run(Rank{Least: tt.least}.Name(), func(t *testing.T) {
			m := &fakeModel{answer: picking(tt.least)}
			got, err := New(tupleCounter).Run(context.Background(), m, 35, "most relevant", in, Rank{Least: tt.least})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("result = %s, want %s", got, tt.want)
			}
			if len(m.prompts) < 2 {
				t.Errorf("expected several rounds, got %d", len(m.prompts))
			}
		})
	}
}

func TestRank_ResultKeepsOriginalID(t *testing.T) {
	in := []rows.Row{rows.Of("id", "a"), rows.Of("id", "b")}
	m := &fakeModel{answer: func(string) (string, error) { return `{"selected": "1"}`, nil }}
	got, err := New(tupleCounter).Run(context.Background(), m, 100, "q", in, Rank{})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"id":"b"}` {
		t.Errorf("result = %s, want the caller's own row", got)
	}
	for _, want := range []string{`<col>"a"</col>`, `<col>"b"</col>`, "<col>_rank_id</col><col>id</col>"} {
		if !strings.Contains(m.prompts[0], want) {
			t.Errorf("prompt lacks %s:\n%s", want, m.prompts[0])
		}
	}
}

func TestRank_FoldRejectsForeignID(t *testing.T) {
	batch := Rank{}.Prepare(numberRows(1, 2))
	tests := []string{`{"selected": 7}`, `{"selected": "x"}`, `{"selected": 1.5}`, `{"other": 1}`}
	for _, answer := range tests {
		if _, err := (Rank{}).Fold(json.RawMessage(answer), batch); !errors.Is(err, fault.ErrInvocation) {
			t.Errorf("Fold(%s) err = %v, want invocation error", answer, err)
		}
	}
}
