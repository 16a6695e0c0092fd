package prompt

import (
	"encoding/json"
	"strings"

	"github.com/flemzord/tabllm/internal/rows"
)

// RenderRowsHeader describes the schema of rows: the union of their column
// names in first-appearance order.
//
//	<header><col>name</col><col>year</col></header>
func RenderRowsHeader(rs []rows.Row) string {
	return renderHeader(Columns(rs))
}

// Columns returns the union of the rows' column names in first-appearance
// order.
func Columns(rs []rows.Row) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range rs {
		r.Each(func(name string, _ json.RawMessage) bool {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				cols = append(cols, name)
			}
			return true
		})
	}
	return cols
}

// RenderHeaderColumns renders a header for an explicit column list.
func RenderHeaderColumns(cols []string) string {
	return renderHeader(cols)
}

func renderHeader(cols []string) string {
	var b strings.Builder
	b.WriteString("<header>")
	for _, c := range cols {
		b.WriteString("<col>")
		b.WriteString(c)
		b.WriteString("</col>")
	}
	b.WriteString("</header>\n")
	return b.String()
}

// RenderSingleRow serializes one row, its values JSON-encoded in the row's
// own column order.
//
//	<tuple><col>"Dune"</col><col>1965</col></tuple>
func RenderSingleRow(r rows.Row) string {
	return RenderRow(r, r.Columns())
}

// RenderRow serializes r against an explicit column list, one <col> per
// column in that order. Columns r lacks render as null.
func RenderRow(r rows.Row, cols []string) string {
	var b strings.Builder
	b.WriteString("<tuple>")
	for _, c := range cols {
		b.WriteString("<col>")
		if v, ok := r.Get(c); ok {
			b.Write(v)
		} else {
			b.WriteString("null")
		}
		b.WriteString("</col>")
	}
	b.WriteString("</tuple>\n")
	return b.String()
}

// RenderBatch renders the header followed by every row in order, each row
// aligned to the header's columns. An empty batch renders as the empty
// string.
func RenderBatch(rs []rows.Row) string {
	if len(rs) == 0 {
		return ""
	}
	cols := Columns(rs)
	var b strings.Builder
	b.WriteString(renderHeader(cols))
	for _, r := range rs {
		b.WriteString(RenderRow(r, cols))
	}
	return b.String()
}

// Render fills a template's user prompt and tuples sections.
func Render(tmpl, userPrompt string, rs []rows.Row) string {
	return Fill(tmpl, map[Section]string{
		UserPrompt: userPrompt,
		Tuples:     RenderBatch(rs),
	})
}
