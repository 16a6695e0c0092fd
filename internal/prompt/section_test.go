package prompt

import (
	"strings"
	"testing"
)

func TestReplaceSection(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		marker  Section
		content string
		want    string
	}{
		{"single", "a {{TUPLES}} b", Tuples, "X", "a X b"},
		{"every occurrence", "{{TUPLES}}-{{TUPLES}}", Tuples, "X", "X-X"},
		{"adjacent", "{{TUPLES}}{{TUPLES}}{{TUPLES}}", Tuples, "x", "xxx"},
		{"absent marker", "nothing here", Tuples, "X", "nothing here"},
		{"empty marker", "a {{TUPLES}}", "", "X", "a {{TUPLES}}"},
		{"other markers untouched", "{{USER_PROMPT}} {{TUPLES}}", Tuples, "rows", "{{USER_PROMPT}} rows"},
		{"content holding the marker", "[{{TUPLES}}]", Tuples, "{{TUPLES}}", "[{{TUPLES}}]"},
		{"empty content", "a{{TUPLES}}b", Tuples, "", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReplaceSection(tt.tmpl, tt.marker, tt.content); got != tt.want {
				t.Errorf("ReplaceSection() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFill(t *testing.T) {
	tmpl := "{{INSTRUCTIONS}}|{{USER_PROMPT}}|{{TUPLES}}|{{USER_PROMPT}}|{{RESPONSE_FORMAT}}"
	got := Fill(tmpl, map[Section]string{
		UserPrompt: "q {{TUPLES}}",
		Tuples:     "rows",
	})
	want := "{{INSTRUCTIONS}}|q {{TUPLES}}|rows|q {{TUPLES}}|{{RESPONSE_FORMAT}}"
	if got != want {
		t.Errorf("Fill() = %q, want %q", got, want)
	}

	if got := Fill(tmpl, nil); got != tmpl {
		t.Errorf("Fill(nil) changed the template: %q", got)
	}
}

func TestTemplate_AllKinds(t *testing.T) {
	for k := range templateParts {
		t.Run(k.String(), func(t *testing.T) {
			tmpl := Template(k)
			for _, marker := range []Section{UserPrompt, Tuples} {
				if !strings.Contains(tmpl, string(marker)) {
					t.Errorf("template missing %s", marker)
				}
			}
			for _, marker := range []Section{Instructions, ResponseFormat} {
				if strings.Contains(tmpl, string(marker)) {
					t.Errorf("template still holds %s", marker)
				}
			}
		})
	}
}

func TestTemplate_ResponseProtocols(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindCompleteBatch, `"tuples"`},
		{KindCompleteJSONBatch, `"tuples"`},
		{KindReduce, `"output"`},
		{KindRankMax, `"selected"`},
		{KindRankMin, `"selected"`},
	}
	for _, tt := range tests {
		if !strings.Contains(Template(tt.kind), tt.want) {
			t.Errorf("%s template does not mention %s", tt.kind, tt.want)
		}
	}
	if strings.Contains(Template(KindRankMax), "least") || !strings.Contains(Template(KindRankMin), "least") {
		t.Error("rank templates should differ in direction")
	}
}

func TestKind_String(t *testing.T) {
	if got := KindReduce.String(); got != "reduce" {
		t.Errorf("String() = %q", got)
	}
	if got := Kind(99).String(); got != "kind(99)" {
		t.Errorf("String() = %q", got)
	}
}
