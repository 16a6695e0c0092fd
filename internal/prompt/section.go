// Package prompt renders LLM prompts from templates and rows, and resolves
// the prompt a function call refers to.
package prompt

import "strings"

// Section is a placeholder marker inside a template.
type Section string

// Recognized template sections.
const (
	UserPrompt     Section = "{{USER_PROMPT}}"
	Tuples         Section = "{{TUPLES}}"
	ResponseFormat Section = "{{RESPONSE_FORMAT}}"
	Instructions   Section = "{{INSTRUCTIONS}}"
)

// ReplaceSection substitutes every occurrence of marker in tmpl with
// content. Scanning resumes after the inserted content, so content that
// itself contains the marker is left alone. An absent or empty marker
// leaves tmpl unchanged.
func ReplaceSection(tmpl string, marker Section, content string) string {
	m := string(marker)
	if m == "" {
		return tmpl
	}

	i := strings.Index(tmpl, m)
	if i < 0 {
		return tmpl
	}

	var b strings.Builder
	rest := tmpl
	for i >= 0 {
		b.WriteString(rest[:i])
		b.WriteString(content)
		rest = rest[i+len(m):]
		i = strings.Index(rest, m)
	}
	b.WriteString(rest)
	return b.String()
}

// Fill replaces several sections in one pass. Inserted content is never
// rescanned, so the result does not depend on map iteration order.
func Fill(tmpl string, sections map[Section]string) string {
	if len(sections) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(sections)*2)
	for marker, content := range sections {
		if marker == "" {
			continue
		}
		pairs = append(pairs, string(marker), content)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
