// Package batch partitions rows into contiguous batches that fit a model's
// token budget.
package batch

import (
	"slices"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/prompt"
	"github.com/flemzord/tabllm/internal/rows"
	"github.com/flemzord/tabllm/internal/tokenizer"
)

// Batch is a contiguous run of input rows.
type Batch struct {
	Rows []rows.Row

	// Start is the input index of Rows[0].
	Start int

	// Tokens is tokens(header) + the sum of the row costs.
	Tokens int

	// Oversized is set when Tokens exceeds the budget. Only a batch holding
	// a single row, or a forced addition, can be oversized.
	Oversized bool
}

// End returns the input index one past the last row.
func (b Batch) End() int { return b.Start + len(b.Rows) }

// Available returns the tokens left for rows once the fixed prompt is paid
// for.
func Available(fixedTokens, contextWindow int) (int, error) {
	avail := contextWindow - fixedTokens
	if avail <= 0 {
		return 0, fault.Configf("fixed tokens exceed model context size (%d fixed, %d context window)",
			fixedTokens, contextWindow)
	}
	return avail, nil
}

// Planner splits rows into batches. It is safe for concurrent use.
type Planner struct {
	counter tokenizer.Counter
	maxRows int
}

// Option configures a Planner.
type Option func(*Planner)

// WithMaxRows caps the number of rows per batch. n <= 0 means no cap.
func WithMaxRows(n int) Option {
	return func(p *Planner) { p.maxRows = n }
}

// NewPlanner creates a planner counting tokens with counter.
func NewPlanner(counter tokenizer.Counter, opts ...Option) *Planner {
	p := &Planner{counter: counter}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// rowCost returns the token cost of r rendered against cols.
func (p *Planner) rowCost(r rows.Row, cols []string) int {
	return p.counter.CountTokens(prompt.RenderRow(r, cols))
}

// Plan partitions rs greedily, left to right. Every row lands in exactly
// one batch and order is preserved. A row that alone exceeds the budget is
// emitted by itself and flagged Oversized.
func (p *Planner) Plan(rs []rows.Row, fixedTokens, contextWindow int) ([]Batch, error) {
	avail, err := Available(fixedTokens, contextWindow)
	if err != nil {
		return nil, err
	}
	if len(rs) == 0 {
		return nil, nil
	}

	var out []Batch
	b := p.NewBuilder(avail)
	start := 0
	for i, r := range rs {
		if b.Add(r, false) {
			continue
		}
		out = append(out, b.Batch(start))
		start = i
		b.Reset()
		b.Add(r, false)
	}
	return append(out, b.Batch(start)), nil
}

// NewBuilder starts an empty batch with the given budget.
func (p *Planner) NewBuilder(budget int) *Builder {
	return &Builder{
		planner: p,
		budget:  budget,
		seen:    make(map[string]struct{}),
	}
}

// Builder fills one batch incrementally. Rows are costed as rendered
// against the batch's column union; when a row brings new columns the
// header and every row already in the batch are costed again.
type Builder struct {
	planner *Planner
	budget  int

	rows         []rows.Row
	cols         []string
	seen         map[string]struct{}
	rowTokens    int
	headerTokens int
}

// Add appends r when it fits. The first row of an empty batch always fits.
// With force, r is appended even past the budget or row cap.
func (b *Builder) Add(r rows.Row, force bool) bool {
	cols := b.cols
	widened := false
	for _, c := range r.Columns() {
		if _, ok := b.seen[c]; ok {
			continue
		}
		if !widened {
			cols = slices.Clone(b.cols)
			widened = true
		}
		cols = append(cols, c)
	}

	header, rowTokens := b.headerTokens, b.rowTokens
	if widened || len(b.rows) == 0 {
		header = b.planner.counter.CountTokens(prompt.RenderHeaderColumns(cols))
	}
	if widened && len(b.rows) > 0 {
		rowTokens = 0
		for _, prev := range b.rows {
			rowTokens += b.planner.rowCost(prev, cols)
		}
	}
	cost := b.planner.rowCost(r, cols)

	if len(b.rows) > 0 && !force {
		if b.planner.maxRows > 0 && len(b.rows) >= b.planner.maxRows {
			return false
		}
		if header+rowTokens+cost > b.budget {
			return false
		}
	}

	if widened {
		for _, c := range cols[len(b.cols):] {
			b.seen[c] = struct{}{}
		}
		b.cols = cols
	}
	b.rows = append(b.rows, r)
	b.rowTokens = rowTokens + cost
	b.headerTokens = header
	return true
}

// Len returns the number of rows in the batch.
func (b *Builder) Len() int { return len(b.rows) }

// Tokens returns tokens(header) + the sum of the row costs.
func (b *Builder) Tokens() int { return b.headerTokens + b.rowTokens }

// Rows returns the rows added so far.
func (b *Builder) Rows() []rows.Row { return b.rows }

// Batch returns the current contents as a Batch starting at input index
// start.
func (b *Builder) Batch(start int) Batch {
	return Batch{
		Rows:      append([]rows.Row(nil), b.rows...),
		Start:     start,
		Tokens:    b.Tokens(),
		Oversized: b.Tokens() > b.budget,
	}
}

// Reset empties the builder, keeping its budget.
func (b *Builder) Reset() {
	b.rows = b.rows[:0]
	b.cols = b.cols[:0]
	clear(b.seen)
	b.rowTokens = 0
	b.headerTokens = 0
}
