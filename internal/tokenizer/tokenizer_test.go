package tokenizer

import "testing"

func TestCharCounter(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		text  string
		want  int
	}{
		{"empty", 4, "", 0},
		{"one char", 4, "a", 1},
		{"exact multiple rounds up", 4, "abcdefgh", 3},
		{"default ratio", 0, "abcdefghijkl", 4},
		{"custom ratio", 2, "abcdef", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCharCounter(tt.ratio)
			if got := c.CountTokens(tt.text); got != tt.want {
				t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestCharCounter_Deterministic(t *testing.T) {
	c := NewCharCounter(4)
	text := "<tuple><col>\"hello\"</col></tuple>\n"
	first := c.CountTokens(text)
	for range 10 {
		if got := c.CountTokens(text); got != first {
			t.Fatalf("CountTokens changed: %d then %d", first, got)
		}
	}
}

func TestNew_Chars(t *testing.T) {
	c, err := New(Config{Kind: KindChars, CharsPerToken: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.CountTokens("abcd"); got != 3 {
		t.Errorf("CountTokens = %d, want 3", got)
	}
}

func TestNew_UnknownKind(t *testing.T) {
	if _, err := New(Config{Kind: "sentencepiece"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.Defaults()
	if cfg.Kind != KindTiktoken {
		t.Errorf("Kind = %q, want %q", cfg.Kind, KindTiktoken)
	}
	if cfg.Encoding != DefaultEncoding {
		t.Errorf("Encoding = %q, want %q", cfg.Encoding, DefaultEncoding)
	}
	if cfg.CharsPerToken != 4.0 {
		t.Errorf("CharsPerToken = %v, want 4", cfg.CharsPerToken)
	}
}

func TestCounterFunc(t *testing.T) {
	f := CounterFunc(func(s string) int { return len(s) * 2 })
	if got := f.CountTokens("abc"); got != 6 {
		t.Errorf("CountTokens = %d, want 6", got)
	}
}
